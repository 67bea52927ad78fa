package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
)

type contextKey string

const (
	sessionKey contextKey = "session"
)

// Auth verifies the bearer session token on every request and stores the
// session (with its preloaded user) in the request context. Failures use the
// stable {success:false, message} shape.
func Auth(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, domain.ErrTokenMissing.Error())
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, domain.ErrTokenMalformed.Error())
				return
			}

			session, err := sessions.Verify(r.Context(), parts[1])
			if err != nil {
				logx.Debug().Err(err).Msg("session verification failed")
				unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the verified session stored by Auth.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(sessionKey).(*domain.Session)
	return session, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
