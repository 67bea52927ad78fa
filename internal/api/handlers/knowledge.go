package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/api/middleware"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
)

type KnowledgeHandler struct {
	factRepo  repository.FactRepository
	chunkRepo repository.ChunkRepository
}

func NewKnowledgeHandler(factRepo repository.FactRepository, chunkRepo repository.ChunkRepository) *KnowledgeHandler {
	return &KnowledgeHandler{factRepo: factRepo, chunkRepo: chunkRepo}
}

const listLimit = 100

func (h *KnowledgeHandler) ListFacts(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	category := r.URL.Query().Get("category")
	if category != "" && !domain.ValidFactCategory(category) {
		respondError(w, http.StatusBadRequest, "Unknown category")
		return
	}

	facts, err := h.factRepo.List(r.Context(), session.UserID, category, listLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, facts)
}

func (h *KnowledgeHandler) DeleteFact(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid fact ID")
		return
	}

	if err := h.factRepo.Delete(r.Context(), session.UserID, id); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Fact deleted"})
}

func (h *KnowledgeHandler) DeleteAllFacts(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	count, err := h.factRepo.DeleteAll(r.Context(), session.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": count})
}

func (h *KnowledgeHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	chunks, err := h.chunkRepo.List(r.Context(), session.UserID, listLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, chunks)
}

func (h *KnowledgeHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.chunkRepo.Delete(r.Context(), session.UserID, id); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})
}

func (h *KnowledgeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	counts, err := h.factRepo.CountByCategory(r.Context(), session.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"factsByCategory": counts})
}
