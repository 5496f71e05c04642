package handlers

import (
	"encoding/json"
	"net/http"

	"tripmate-backend/internal/middleware"
	"tripmate-backend/internal/services"

	"github.com/go-playground/validator/v10"
)

// TemplateHandler handles trip template copy HTTP requests
type TemplateHandler struct {
	templates *services.TemplateService
	validate  *validator.Validate
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templates *services.TemplateService, validate *validator.Validate) *TemplateHandler {
	return &TemplateHandler{templates: templates, validate: validate}
}

// CopyTemplateRequest represents the request body for copying a public trip
type CopyTemplateRequest struct {
	PublicTripID string `json:"public_trip_id" validate:"required"`
}

// Copy handles POST /api/f2/copy-template/
func (h *TemplateHandler) Copy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := middleware.RequireUser(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var req CopyTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	result, err := h.templates.Copy(ctx, user, req.PublicTripID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, result, http.StatusCreated)
}
