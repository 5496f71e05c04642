package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"tripmate-backend/internal/middleware"
	"tripmate-backend/internal/models"
	"tripmate-backend/internal/services"

	"github.com/go-playground/validator/v10"
)

// SyncHandler handles co-editing sync HTTP requests
type SyncHandler struct {
	sync     *services.SyncService
	validate *validator.Validate
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(sync *services.SyncService, validate *validator.Validate) *SyncHandler {
	return &SyncHandler{sync: sync, validate: validate}
}

// SyncRequest represents the request body for a sync round-trip
type SyncRequest struct {
	TripID       string              `json:"trip_id" validate:"required"`
	LastSyncedAt *time.Time          `json:"last_synced_at"`
	Changes      []models.SyncChange `json:"changes"`
}

// Sync handles POST /api/f2/sync/
// Returns 200 with full canonical state, or 422 when some changes were
// rejected; rejected changes never block the rest of the merge.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	result, err := h.sync.Apply(ctx, user, req.TripID, req.LastSyncedAt, req.Changes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if len(result.RejectedChanges) > 0 {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, result, status)
}
