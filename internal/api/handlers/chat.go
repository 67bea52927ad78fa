package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shivanandham/pregnancy-assistant/internal/api/middleware"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
)

type ChatHandler struct {
	chat        *service.ChatService
	messageRepo repository.MessageRepository
}

func NewChatHandler(chat *service.ChatService, messageRepo repository.MessageRepository) *ChatHandler {
	return &ChatHandler{chat: chat, messageRepo: messageRepo}
}

type SendMessageRequest struct {
	Message string `json:"message"`
	Week    *int   `json:"week,omitempty"`
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply, err := h.chat.Send(r.Context(), session.UserID, req.Message, req.Week)
	if err != nil {
		logx.Error().Err(err).Msg("chat send failed")
		respondError(w, http.StatusBadGateway, "Failed to generate a reply")
		return
	}

	respondJSON(w, http.StatusOK, reply)
}

const historyLimit = 50

// History returns the most recent messages, oldest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	messages, err := h.messageRepo.GetRecent(r.Context(), session.UserID, historyLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// GetRecent returns newest first; clients render chronologically.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	respondJSON(w, http.StatusOK, messages)
}
