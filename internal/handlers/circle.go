package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sangha-backend/internal/models"
	"sangha-backend/internal/services"
)

type CircleHandler struct {
	practitioners *services.PractitionerService
}

func NewCircleHandler(practitioners *services.PractitionerService) *CircleHandler {
	return &CircleHandler{practitioners: practitioners}
}

func (h *CircleHandler) List(w http.ResponseWriter, r *http.Request) {
	circles, err := h.practitioners.Circles(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, circles)
}

func (h *CircleHandler) Active(w http.ResponseWriter, r *http.Request) {
	circles, err := h.practitioners.ActiveCircles(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, circles)
}

func (h *CircleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCircleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	circle, err := h.practitioners.CreateCircle(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, circle)
}

func (h *CircleHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.practitioners.JoinCircle(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "circleID"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// Register marks the circle as upcoming for the practitioner without starting a session.
func (h *CircleHandler) Register(w http.ResponseWriter, r *http.Request) {
	circle, err := h.practitioners.RegisterCircle(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "circleID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, circle)
}

func (h *CircleHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	report, err := h.practitioners.CircleReceipt(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "circleID"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
