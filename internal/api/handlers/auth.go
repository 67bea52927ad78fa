package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shivanandham/pregnancy-assistant/internal/api/middleware"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
	"gorm.io/datatypes"
)

type AuthHandler struct {
	verifier *service.Verifier
	sessions *service.SessionService
}

func NewAuthHandler(verifier *service.Verifier, sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{verifier: verifier, sessions: sessions}
}

type LoginRequest struct {
	IDToken    string          `json:"idToken"`
	DeviceInfo json.RawMessage `json:"deviceInfo,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UserSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

type SessionResponse struct {
	SessionToken     string      `json:"sessionToken"`
	RefreshToken     string      `json:"refreshToken"`
	ExpiresAt        time.Time   `json:"expiresAt"`
	RefreshExpiresAt time.Time   `json:"refreshExpiresAt"`
	User             UserSummary `json:"user"`
}

func userSummary(u *domain.User) UserSummary {
	return UserSummary{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

func sessionResponse(issued *service.IssuedSession) SessionResponse {
	return SessionResponse{
		SessionToken:     issued.SessionToken,
		RefreshToken:     issued.RefreshToken,
		ExpiresAt:        issued.ExpiresAt,
		RefreshExpiresAt: issued.RefreshExpiresAt,
		User:             userSummary(issued.User),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.IDToken == "" {
		respondError(w, http.StatusBadRequest, "Identity token is required")
		return
	}

	claim, err := h.verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, domain.ErrInvalidCredential.Error())
		return
	}

	issued, err := h.sessions.Login(r.Context(), claim, datatypes.JSON(req.DeviceInfo))
	if err != nil {
		logx.Error().Err(err).Msg("login failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse(issued))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	issued, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if isAuthError(err) {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		logx.Error().Err(err).Msg("refresh failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse(issued))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	if err := h.sessions.Revoke(r.Context(), session.ID); err != nil {
		logx.Error().Err(err).Msg("logout failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	count, err := h.sessions.RevokeAll(r.Context(), session.UserID)
	if err != nil {
		logx.Error().Err(err).Msg("logout-all failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	user, err := h.sessions.GetUser(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, userSummary(user))
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	if err := h.sessions.DeleteAccount(r.Context(), session.UserID); err != nil {
		logx.Error().Err(err).Msg("account deletion failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

func isAuthError(err error) bool {
	for _, target := range []error{
		domain.ErrRefreshInvalid,
		domain.ErrRefreshExpired,
		domain.ErrSessionRevoked,
		domain.ErrSessionNotFound,
		domain.ErrSessionExpired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
