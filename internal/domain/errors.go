package domain

import "errors"

// Credential verification errors
var (
	ErrInvalidCredential = errors.New("invalid credential token")
	ErrCredentialExpired = errors.New("credential token expired")
	ErrWrongIssuer       = errors.New("invalid token issuer")
)

// Session verification errors. Each maps to a stable 401 reason.
var (
	ErrTokenMissing    = errors.New("no token provided")
	ErrTokenMalformed  = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionMismatch = errors.New("invalid session ID")
	ErrRefreshInvalid  = errors.New("invalid refresh token")
	ErrRefreshExpired  = errors.New("refresh token expired")
)

var (
	ErrUserNotFound = errors.New("user not found")
)
