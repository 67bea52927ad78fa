package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/config"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
	"gorm.io/datatypes"
)

// SessionService owns the session lifecycle: issuance, verification,
// rotation, revocation and the periodic sweep. No other component writes
// session rows.
type SessionService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	cfg         *config.Config
	collector   metrics.Collector
}

func NewSessionService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, cfg *config.Config, collector metrics.Collector) *SessionService {
	return &SessionService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cfg:         cfg,
		collector:   collector,
	}
}

// IssuedSession is what the HTTP layer returns to the client after login or
// refresh. The refresh token appears here once and is never recoverable.
type IssuedSession struct {
	SessionID        uuid.UUID
	User             *domain.User
	SessionToken     string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Login resolves the verified claim to a user record (creating it on first
// login, refreshing profile fields after), revokes every active session the
// user owns, then issues a fresh one. Immediately after Login exactly one
// non-revoked session exists for the user.
func (s *SessionService) Login(ctx context.Context, claim *domain.IdentityClaim, deviceInfo datatypes.JSON) (*IssuedSession, error) {
	user, err := s.upsertUser(ctx, claim)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	revoked, err := s.sessionRepo.RevokeAllByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("revoking prior sessions: %w", err)
	}
	if revoked > 0 {
		logx.Debug().Str("user_id", user.ID.String()).Int64("revoked", revoked).Msg("revoked prior sessions at login")
	}

	issued, err := s.Issue(ctx, user, deviceInfo)
	if err != nil {
		return nil, err
	}

	s.collector.RecordLogin()
	return issued, nil
}

// Issue mints a new session row: a signed session token embedding the
// session id and a separate opaque refresh token.
func (s *SessionService) Issue(ctx context.Context, user *domain.User, deviceInfo datatypes.JSON) (*IssuedSession, error) {
	now := time.Now()
	sessionID := uuid.New()
	expiresAt := now.Add(s.cfg.SessionTTL())
	refreshExpiresAt := now.Add(s.cfg.RefreshTTL())

	token, err := s.signSessionToken(sessionID, user.ID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	session := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		Token:            token,
		RefreshToken:     refreshToken,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpiresAt,
		DeviceInfo:       deviceInfo,
		LastUsedAt:       now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	return &IssuedSession{
		SessionID:        sessionID,
		User:             user,
		SessionToken:     token,
		RefreshToken:     refreshToken,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Verify checks the token signature and expiry, loads the backing row and
// rejects revoked, expired or desynced sessions. Success bumps last_used_at.
func (s *SessionService) Verify(ctx context.Context, token string) (*domain.Session, error) {
	sessionID, _, err := s.parseSessionToken(token)
	if err != nil {
		s.collector.RecordAuthFailure(err.Error())
		return nil, err
	}

	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.collector.RecordAuthFailure(domain.ErrSessionNotFound.Error())
		}
		return nil, err
	}

	now := time.Now()
	switch {
	case session.IsRevoked:
		s.collector.RecordAuthFailure(domain.ErrSessionRevoked.Error())
		return nil, domain.ErrSessionRevoked
	case now.After(session.ExpiresAt):
		s.collector.RecordAuthFailure(domain.ErrSessionExpired.Error())
		return nil, domain.ErrSessionExpired
	case session.ID != sessionID:
		s.collector.RecordAuthFailure(domain.ErrSessionMismatch.Error())
		return nil, domain.ErrSessionMismatch
	}

	if err := s.sessionRepo.TouchLastUsed(ctx, session.ID, now); err != nil {
		return nil, fmt.Errorf("updating last used: %w", err)
	}
	session.LastUsedAt = now

	return session, nil
}

// Refresh redeems a refresh token for a rotated session. The old row is
// revoked with a compare-and-set before the replacement is issued, so each
// refresh-token value is redeemable at most once even under concurrent
// redemption.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*IssuedSession, error) {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.collector.RecordAuthFailure(domain.ErrRefreshInvalid.Error())
			return nil, domain.ErrRefreshInvalid
		}
		return nil, err
	}

	if session.IsRevoked {
		s.collector.RecordAuthFailure(domain.ErrSessionRevoked.Error())
		return nil, domain.ErrSessionRevoked
	}
	if time.Now().After(session.RefreshExpiresAt) {
		s.collector.RecordAuthFailure(domain.ErrRefreshExpired.Error())
		return nil, domain.ErrRefreshExpired
	}

	won, err := s.sessionRepo.RevokeIfActive(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("revoking session for rotation: %w", err)
	}
	if !won {
		// A concurrent redemption of the same token got there first.
		s.collector.RecordAuthFailure(domain.ErrSessionRevoked.Error())
		return nil, domain.ErrSessionRevoked
	}

	user := session.User
	if user == nil {
		user, err = s.userRepo.GetByID(ctx, session.UserID)
		if err != nil {
			return nil, err
		}
	}

	issued, err := s.Issue(ctx, user, session.DeviceInfo)
	if err != nil {
		return nil, err
	}

	s.collector.RecordRefresh()
	return issued, nil
}

// Revoke marks a session revoked. Idempotent.
func (s *SessionService) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessionRepo.Revoke(ctx, sessionID)
}

// RevokeAll revokes every active session for the user and returns how many
// were revoked.
func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.sessionRepo.RevokeAllByUserID(ctx, userID)
}

// SweepExpired deletes rows that have been expired or revoked for longer
// than the retention period. Safe to run concurrently with live traffic.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.SweepRetentionPeriod())
	deleted, err := s.sessionRepo.DeleteInertBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}

	s.collector.RecordSessionsSwept(deleted)
	return deleted, nil
}

func (s *SessionService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// DeleteAccount removes the user; sessions and owned data cascade.
func (s *SessionService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	return s.userRepo.Delete(ctx, userID)
}

func (s *SessionService) upsertUser(ctx context.Context, claim *domain.IdentityClaim) (*domain.User, error) {
	user, err := s.userRepo.GetByFirebaseUID(ctx, claim.SubjectID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		user = &domain.User{
			ID:          uuid.New(),
			FirebaseUID: claim.SubjectID,
			Email:       claim.Email,
			DisplayName: claim.DisplayName,
			PhotoURL:    claim.PhotoURL,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	// Refresh profile fields from the latest claim.
	user.Email = claim.Email
	user.DisplayName = claim.DisplayName
	user.PhotoURL = claim.PhotoURL
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SessionService) signSessionToken(sessionID, userID uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"sid": sessionID.String(),
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *SessionService) parseSessionToken(tokenString string) (sessionID, userID uuid.UUID, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, uuid.Nil, domain.ErrTokenExpired
		}
		return uuid.Nil, uuid.Nil, domain.ErrTokenMalformed
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, uuid.Nil, domain.ErrTokenMalformed
	}

	sid, _ := claims["sid"].(string)
	sub, _ := claims["sub"].(string)

	sessionID, err = uuid.Parse(sid)
	if err != nil {
		return uuid.Nil, uuid.Nil, domain.ErrTokenMalformed
	}
	userID, err = uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, uuid.Nil, domain.ErrTokenMalformed
	}

	return sessionID, userID, nil
}

// newRefreshToken returns a 512-bit random value, hex encoded. It is stored
// as-is; lookup is by exact value against a unique index.
func newRefreshToken() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
