package handlers

import (
	"net/http"

	"sangha-backend/internal/models"
	"sangha-backend/internal/presence"
)

type PresenceHandler struct {
	registry *presence.Registry
}

func NewPresenceHandler(registry *presence.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

func (h *PresenceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.PresenceStats{
		Connections: h.registry.Connections(),
		Sessions:    h.registry.Size(),
	})
}
