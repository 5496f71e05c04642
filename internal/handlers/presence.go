package handlers

import (
	"net/http"

	"tripmate-backend/internal/middleware"
	"tripmate-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// PresenceHandler handles presence HTTP requests
type PresenceHandler struct {
	presence *services.PresenceRegistry
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(presence *services.PresenceRegistry) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Touch handles POST /api/f2/trips/{trip_id}/presence/
func (h *PresenceHandler) Touch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	tripID := chi.URLParam(r, "trip_id")

	online, serverTime, err := h.presence.Touch(ctx, tripID, user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"online_user_ids": online,
		"server_time":     serverTime,
	}, http.StatusOK)
}
