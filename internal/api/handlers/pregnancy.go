package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shivanandham/pregnancy-assistant/internal/api/middleware"
	"github.com/shivanandham/pregnancy-assistant/internal/domain"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
)

type PregnancyHandler struct {
	pregnancyRepo repository.PregnancyRepository
}

func NewPregnancyHandler(pregnancyRepo repository.PregnancyRepository) *PregnancyHandler {
	return &PregnancyHandler{pregnancyRepo: pregnancyRepo}
}

type PregnancyRequest struct {
	DueDate string `json:"dueDate"`
}

type PregnancyResponse struct {
	DueDate     time.Time `json:"dueDate"`
	CurrentWeek *int      `json:"currentWeek,omitempty"`
}

// Set stores or replaces the due date the current week is derived from.
func (h *PregnancyHandler) Set(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	var req PregnancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Due date must be YYYY-MM-DD")
		return
	}

	pregnancy := &domain.Pregnancy{
		ID:      uuid.New(),
		UserID:  session.UserID,
		DueDate: dueDate,
	}
	if err := h.pregnancyRepo.Upsert(r.Context(), pregnancy); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, PregnancyResponse{
		DueDate:     dueDate,
		CurrentWeek: pregnancy.CurrentWeek(time.Now()),
	})
}

func (h *PregnancyHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, domain.ErrTokenMissing.Error())
		return
	}

	pregnancy, err := h.pregnancyRepo.GetByUserID(r.Context(), session.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if pregnancy == nil {
		respondError(w, http.StatusNotFound, "No pregnancy record")
		return
	}

	respondJSON(w, http.StatusOK, PregnancyResponse{
		DueDate:     pregnancy.DueDate,
		CurrentWeek: pregnancy.CurrentWeek(time.Now()),
	})
}
