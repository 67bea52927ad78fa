package testutil

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope is the stable {success, data, message} response shape.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// DecodeEnvelope reads the response body as the standard envelope.
func DecodeEnvelope(t *testing.T, resp *http.Response) Envelope {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env), "failed to unmarshal response: %s", string(body))
	return env
}

// DecodeData decodes the envelope's data field into v, failing on
// success=false responses.
func DecodeData(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	env := DecodeEnvelope(t, resp)
	require.True(t, env.Success, "expected success response, got message %q", env.Message)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// AssertErrorEnvelope verifies status code, success=false and the message.
func AssertErrorEnvelope(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	env := DecodeEnvelope(t, resp)
	assert.False(t, env.Success)
	if expectedMessage != "" {
		assert.Contains(t, env.Message, expectedMessage, "error message mismatch")
	}
}

// IdentityToken builds an unsigned Firebase-style custom token accepted by
// the development verification shortcut.
func IdentityToken(t *testing.T, ts *TestServer, uid, email, name string) string {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"iss": ts.Config.FirebaseServiceAccountEmail,
		"uid": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
		"claims": map[string]string{
			"email": email,
			"name":  name,
		},
	})
	require.NoError(t, err)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".test-signature"
}

// SessionTokens is the data portion of a login or refresh response.
type SessionTokens struct {
	SessionToken string `json:"sessionToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
}

// Authenticate logs in through the API and returns the issued tokens.
func Authenticate(t *testing.T, ts *TestServer, uid, email, name string) SessionTokens {
	t.Helper()

	body, err := json.Marshal(map[string]string{
		"idToken": IdentityToken(t, ts, uid, email, name),
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.APIURL("/auth/login"), "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode, "login failed")

	var tokens SessionTokens
	DecodeData(t, resp, &tokens)
	return tokens
}

// AuthedRequest performs an HTTP request with a bearer session token.
func AuthedRequest(t *testing.T, method, url, token string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}
