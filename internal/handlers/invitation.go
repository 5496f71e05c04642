package handlers

import (
	"encoding/json"
	"net/http"

	"tripmate-backend/internal/middleware"
	"tripmate-backend/internal/models"
	"tripmate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// InvitationHandler handles collaboration invitation HTTP requests
type InvitationHandler struct {
	invitations *services.InvitationService
	validate    *validator.Validate
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitations *services.InvitationService, validate *validator.Validate) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, validate: validate}
}

// InviteRequest represents the request body for inviting a collaborator
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=owner editor viewer"`
}

// Invite handles POST /api/f1/trips/{trip_id}/invite/
func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	tripID := chi.URLParam(r, "trip_id")

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	invitation, err := h.invitations.Issue(ctx, user, tripID, req.Email, models.CollaboratorRole(req.Role))
	if err != nil {
		log.Error().
			Err(err).
			Str("trip_id", tripID).
			Str("user_id", user.ID).
			Msg("Failed to issue invitation")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, map[string]any{
		"trip_id":       invitation.TripID,
		"invited_email": req.Email,
		"role":          invitation.Role,
		"status":        invitation.Status,
		"invited_at":    invitation.InvitedAt,
	}, http.StatusOK)
}

// Preview handles GET /api/f1/trip-invitation/{token}/accept/
// Unauthenticated; a consumed token is indistinguishable from an unknown one.
func (h *InvitationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	preview, err := h.invitations.Preview(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, preview, http.StatusOK)
}

// Accept handles POST /api/f1/trip-invitation/{token}/accept/
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	token := chi.URLParam(r, "token")

	result, err := h.invitations.Redeem(ctx, user, token)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, result, http.StatusOK)
}

// ListCollaborators handles GET /api/f1/trips/{trip_id}/collaborators/
func (h *InvitationHandler) ListCollaborators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	tripID := chi.URLParam(r, "trip_id")

	collaborators, err := h.invitations.ListForOwner(ctx, user, tripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if collaborators == nil {
		collaborators = []models.TripCollaborator{}
	}
	respondJSON(w, collaborators, http.StatusOK)
}
