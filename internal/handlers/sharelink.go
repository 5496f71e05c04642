package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"tripmate-backend/internal/middleware"
	"tripmate-backend/internal/models"
	"tripmate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ShareLinkHandler handles share link HTTP requests
type ShareLinkHandler struct {
	links    *services.ShareLinkService
	validate *validator.Validate
}

// NewShareLinkHandler creates a new share link handler
func NewShareLinkHandler(links *services.ShareLinkService, validate *validator.Validate) *ShareLinkHandler {
	return &ShareLinkHandler{links: links, validate: validate}
}

// CreateShareRequest represents the request body for creating a share link
type CreateShareRequest struct {
	TripID     string     `json:"trip_id" validate:"required"`
	Permission string     `json:"permission" validate:"required,oneof=view edit"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// Create handles POST /api/f2/share/create/
func (h *ShareLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	link, err := h.links.Create(ctx, user, req.TripID, models.SharePermission(req.Permission), req.ExpiresAt)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, link, http.StatusCreated)
}

// Resolve handles GET /api/f2/share/{token}/
// Unauthenticated. Expiry is advisory: an expired-but-active link is still
// returned, flagged, and the caller applies its own policy.
func (h *ShareLinkHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	link, err := h.links.Resolve(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	expired := link.ExpiresAt != nil && link.ExpiresAt.Before(time.Now())
	respondJSON(w, map[string]any{
		"trip_id":    link.TripID,
		"token":      link.Token,
		"permission": link.Permission,
		"expires_at": link.ExpiresAt,
		"expired":    expired,
	}, http.StatusOK)
}

// Revoke handles POST /api/f2/share/{token}/revoke/
func (h *ShareLinkHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	token := chi.URLParam(r, "token")

	if err := h.links.Revoke(ctx, user, token); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]any{"revoked": true}, http.StatusOK)
}
