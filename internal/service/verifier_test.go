package service_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
	"github.com/shivanandham/pregnancy-assistant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signIDToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func customToken(t *testing.T, issuer, uid string, exp time.Time, claims map[string]string) string {
	t.Helper()

	payload := map[string]interface{}{
		"iss":    issuer,
		"uid":    uid,
		"claims": claims,
	}
	if !exp.IsZero() {
		payload["exp"] = exp.Unix()
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString(raw)
	return header + "." + body + ".unchecked-signature"
}

func TestVerifier_IDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := testutil.TestConfig()
	cfg.AllowUnverifiedCustomTokens = false
	verifier := service.NewVerifier(cfg, testutil.StaticKeySource{"kid-1": &key.PublicKey})
	ctx := context.Background()

	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":   "https://securetoken.google.com/" + cfg.FirebaseProjectID,
			"aud":   cfg.FirebaseProjectID,
			"sub":   "firebase-uid-1",
			"exp":   time.Now().Add(time.Hour).Unix(),
			"email": "person@example.com",
			"name":  "Person",
		}
	}

	t.Run("valid token", func(t *testing.T) {
		claim, err := verifier.Verify(ctx, signIDToken(t, key, "kid-1", baseClaims()))
		require.NoError(t, err)
		assert.Equal(t, "firebase-uid-1", claim.SubjectID)
		assert.Equal(t, "person@example.com", claim.Email)
		assert.Equal(t, "Person", claim.DisplayName)
	})

	t.Run("fills missing profile fields with placeholders", func(t *testing.T) {
		claims := baseClaims()
		delete(claims, "email")
		delete(claims, "name")

		claim, err := verifier.Verify(ctx, signIDToken(t, key, "kid-1", claims))
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", claim.Email)
		assert.Equal(t, "Test User", claim.DisplayName)
		assert.NotEmpty(t, claim.PhotoURL)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := baseClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()

		_, err := verifier.Verify(ctx, signIDToken(t, key, "kid-1", claims))
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := baseClaims()
		claims["aud"] = "someone-elses-project"

		_, err := verifier.Verify(ctx, signIDToken(t, key, "kid-1", claims))
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("unknown key id", func(t *testing.T) {
		_, err := verifier.Verify(ctx, signIDToken(t, key, "kid-unknown", baseClaims()))
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("signed by a different key", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, signIDToken(t, otherKey, "kid-1", baseClaims()))
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})
}

func TestVerifier_CustomToken(t *testing.T) {
	cfg := testutil.TestConfig()
	verifier := service.NewVerifier(cfg, testutil.StaticKeySource{})
	ctx := context.Background()

	issuer := cfg.FirebaseServiceAccountEmail

	t.Run("accepted when enabled", func(t *testing.T) {
		token := customToken(t, issuer, "custom-uid", time.Now().Add(time.Hour), map[string]string{
			"email": "custom@example.com",
			"name":  "Custom Person",
		})

		claim, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "custom-uid", claim.SubjectID)
		assert.Equal(t, "custom@example.com", claim.Email)
	})

	t.Run("missing claims fall back to placeholders", func(t *testing.T) {
		token := customToken(t, issuer, "custom-uid", time.Now().Add(time.Hour), nil)

		claim, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "test@example.com", claim.Email)
		assert.Equal(t, "Test User", claim.DisplayName)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := customToken(t, "mallory@example.com", "custom-uid", time.Now().Add(time.Hour), nil)

		_, err := verifier.Verify(ctx, token)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("expired", func(t *testing.T) {
		token := customToken(t, issuer, "custom-uid", time.Now().Add(-time.Hour), nil)

		_, err := verifier.Verify(ctx, token)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("missing uid", func(t *testing.T) {
		token := customToken(t, issuer, "", time.Now().Add(time.Hour), nil)

		_, err := verifier.Verify(ctx, token)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})

	t.Run("rejected when disabled", func(t *testing.T) {
		disabled := testutil.TestConfig()
		disabled.AllowUnverifiedCustomTokens = false
		strict := service.NewVerifier(disabled, testutil.StaticKeySource{})

		token := customToken(t, issuer, "custom-uid", time.Now().Add(time.Hour), nil)

		_, err := strict.Verify(ctx, token)
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	})
}
