package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatHandler_Send(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	generator := &testutil.StubGenerator{Reply: "Nausea around week 8 is very common."}
	ts := testutil.NewTestServer(t, testDB, generator)

	t.Run("returns the assistant reply and persists both messages", func(t *testing.T) {
		testDB.Truncate(t)
		tokens := testutil.Authenticate(t, ts, "uid-chat", "chat@example.com", "Chat User")

		body, _ := json.Marshal(map[string]interface{}{
			"message": "I feel sick in the morning",
			"week":    8,
		})
		resp := testutil.AuthedRequest(t, http.MethodPost, ts.APIURL("/chat/send"), tokens.SessionToken, bytes.NewBuffer(body))
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var reply struct {
			Reply string `json:"reply"`
			Week  *int   `json:"week"`
		}
		testutil.DecodeData(t, resp, &reply)
		assert.Equal(t, "Nausea around week 8 is very common.", reply.Reply)
		require.NotNil(t, reply.Week)
		assert.Equal(t, 8, *reply.Week)

		userID := uuid.MustParse(tokens.User.ID)
		var messages []domain.ChatMessage
		require.NoError(t, testDB.DB.Where("user_id = ?", userID).Order("created_at").Find(&messages).Error)
		require.Len(t, messages, 2)
		assert.Equal(t, domain.RoleUser, messages[0].Role)
		assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	})

	t.Run("empty message", func(t *testing.T) {
		testDB.Truncate(t)
		tokens := testutil.Authenticate(t, ts, "uid-chat-2", "chat2@example.com", "Chat User")

		body, _ := json.Marshal(map[string]string{"message": ""})
		resp := testutil.AuthedRequest(t, http.MethodPost, ts.APIURL("/chat/send"), tokens.SessionToken, bytes.NewBuffer(body))
		defer resp.Body.Close()
		testutil.AssertErrorEnvelope(t, resp, http.StatusBadRequest, "Message is required")
	})

	t.Run("generator failure maps to bad gateway", func(t *testing.T) {
		testDB.Truncate(t)
		broken := testutil.NewTestServer(t, testDB, &testutil.StubGenerator{Err: assert.AnError})
		tokens := testutil.Authenticate(t, broken, "uid-chat-3", "chat3@example.com", "Chat User")

		body, _ := json.Marshal(map[string]string{"message": "hello"})
		resp := testutil.AuthedRequest(t, http.MethodPost, broken.APIURL("/chat/send"), tokens.SessionToken, bytes.NewBuffer(body))
		defer resp.Body.Close()
		testutil.AssertErrorEnvelope(t, resp, http.StatusBadGateway, "Failed to generate a reply")
	})

	t.Run("history returns messages oldest first", func(t *testing.T) {
		testDB.Truncate(t)
		tokens := testutil.Authenticate(t, ts, "uid-hist", "hist@example.com", "Hist User")

		for _, msg := range []string{"first question", "second question"} {
			body, _ := json.Marshal(map[string]string{"message": msg})
			resp := testutil.AuthedRequest(t, http.MethodPost, ts.APIURL("/chat/send"), tokens.SessionToken, bytes.NewBuffer(body))
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		resp := testutil.AuthedRequest(t, http.MethodGet, ts.APIURL("/chat/history"), tokens.SessionToken, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var messages []domain.ChatMessage
		testutil.DecodeData(t, resp, &messages)
		require.Len(t, messages, 4)
		assert.Equal(t, domain.RoleUser, messages[0].Role)
		assert.Equal(t, "first question", messages[0].Content)
		assert.Equal(t, domain.RoleAssistant, messages[3].Role)
	})

	t.Run("requires authentication", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"message": "hello"})
		resp, err := http.Post(ts.APIURL("/chat/send"), "application/json", bytes.NewBuffer(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
