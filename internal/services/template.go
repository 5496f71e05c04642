package services

import (
	"context"
	"errors"
	"fmt"

	"tripmate-backend/internal/apperr"
	"tripmate-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// TemplateStore clones a public trip for a new owner.
type TemplateStore interface {
	CopyTemplate(ctx context.Context, sourceTripID, ownerID string) (string, error)
}

// TemplateService copies community trips into a caller's private space.
type TemplateService struct {
	trips TemplateStore
}

// NewTemplateService creates a new template service
func NewTemplateService(trips TemplateStore) *TemplateService {
	return &TemplateService{trips: trips}
}

// CopyResult is the outcome of a template copy.
type CopyResult struct {
	NewTripID string `json:"new_trip_id"`
	Message   string `json:"message"`
}

// Copy clones the public source trip as a new private trip owned by the
// caller. Non-public or missing sources are NotFound; the clone carries no
// cost or booking data.
func (s *TemplateService) Copy(ctx context.Context, caller *models.AppUser, publicTripID string) (*CopyResult, error) {
	newTripID, err := s.trips.CopyTemplate(ctx, publicTripID, caller.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Public trip not found")
		}
		return nil, fmt.Errorf("failed to copy template: %w", err)
	}

	log.Info().
		Str("source_trip_id", publicTripID).
		Str("new_trip_id", newTripID).
		Str("user_id", caller.ID).
		Msg("Trip template copied")

	return &CopyResult{
		NewTripID: newTripID,
		Message:   "Trip template copied to your trips.",
	}, nil
}
