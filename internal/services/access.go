package services

import (
	"context"
	"errors"
	"fmt"

	"tripmate-backend/internal/apperr"
	"tripmate-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// TripStore is the trip access the services need.
type TripStore interface {
	GetByID(ctx context.Context, id string) (*models.Trip, error)
}

// CollaboratorAccessStore answers membership questions.
type CollaboratorAccessStore interface {
	HasActive(ctx context.Context, tripID, userID string) (bool, error)
	ActiveRole(ctx context.Context, tripID, userID string) (models.CollaboratorRole, error)
}

// AccessService evaluates the authorization predicate every trip-scoped
// operation must satisfy: the user is the owner or an active collaborator.
type AccessService struct {
	trips   TripStore
	collabs CollaboratorAccessStore
}

// NewAccessService creates a new access service
func NewAccessService(trips TripStore, collabs CollaboratorAccessStore) *AccessService {
	return &AccessService{trips: trips, collabs: collabs}
}

// RequireAccess loads the trip and verifies the user may access it.
// A missing trip is NotFound; a denied user is Forbidden.
func (s *AccessService) RequireAccess(ctx context.Context, tripID, userID string) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Trip not found")
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}

	if trip.OwnerID == userID {
		return trip, nil
	}

	active, err := s.collabs.HasActive(ctx, tripID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check collaborator: %w", err)
	}
	if !active {
		return nil, apperr.Forbidden("")
	}
	return trip, nil
}

// MayAccess reports whether the user may access the trip without loading it
// for the caller.
func (s *AccessService) MayAccess(ctx context.Context, tripID, userID string) (bool, error) {
	_, err := s.RequireAccess(ctx, tripID, userID)
	if err != nil {
		var domainErr *apperr.Error
		if errors.As(err, &domainErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RoleFor returns the effective role of the user on the trip: owner for the
// trip owner, the active collaborator role otherwise, empty for outsiders.
func (s *AccessService) RoleFor(ctx context.Context, trip *models.Trip, userID string) (models.CollaboratorRole, error) {
	if trip.OwnerID == userID {
		return models.CollaboratorRoleOwner, nil
	}
	role, err := s.collabs.ActiveRole(ctx, trip.ID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// RequireEditor verifies the user may mutate trip content. Viewers are
// read-only; owners and editors may write.
func (s *AccessService) RequireEditor(ctx context.Context, trip *models.Trip, userID string) error {
	role, err := s.RoleFor(ctx, trip, userID)
	if err != nil {
		return err
	}
	switch role {
	case models.CollaboratorRoleOwner, models.CollaboratorRoleEditor:
		return nil
	case models.CollaboratorRoleViewer:
		return apperr.Forbidden("Viewers cannot edit this trip")
	}
	return apperr.Forbidden("")
}
