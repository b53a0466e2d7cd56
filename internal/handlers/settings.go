package handlers

import (
	"net/http"

	"sangha-backend/internal/models"
	"sangha-backend/internal/services"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) AddIntention(w http.ResponseWriter, r *http.Request) {
	var req models.Intention
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.settings.AddIntention(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, settings)
}
