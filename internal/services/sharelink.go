package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"tripmate-backend/internal/apperr"
	"tripmate-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// ShareLinkStore is the share link persistence the service needs.
type ShareLinkStore interface {
	Create(ctx context.Context, link *models.TripShareLink) error
	GetActiveByToken(ctx context.Context, token string) (*models.TripShareLink, error)
	GetByToken(ctx context.Context, token string) (*models.TripShareLink, error)
	Revoke(ctx context.Context, token string) error
}

// ShareLinkService mints and resolves revocable public trip tokens.
type ShareLinkService struct {
	trips TripStore
	links ShareLinkStore
}

// NewShareLinkService creates a new share link service
func NewShareLinkService(trips TripStore, links ShareLinkStore) *ShareLinkService {
	return &ShareLinkService{trips: trips, links: links}
}

// NewShareToken mints a 128-bit hex share token.
func NewShareToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}

// Create mints a share link for a trip. Owner-only.
func (s *ShareLinkService) Create(ctx context.Context, caller *models.AppUser, tripID string, permission models.SharePermission, expiresAt *time.Time) (*models.TripShareLink, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Trip not found")
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip.OwnerID != caller.ID {
		return nil, apperr.Forbidden("Only the trip owner can create share links")
	}

	link := &models.TripShareLink{
		ID:         uuid.New().String(),
		TripID:     tripID,
		Token:      NewShareToken(),
		Permission: permission,
		ExpiresAt:  expiresAt,
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create share link: %w", err)
	}

	log.Info().
		Str("trip_id", tripID).
		Str("permission", string(permission)).
		Msg("Share link created")

	return link, nil
}

// Resolve returns the active link behind a token. Expiry is advisory: an
// expired-but-active link is still returned and the caller layers its own
// policy on expires_at. Revoked and unknown tokens are both NotFound.
func (s *ShareLinkService) Resolve(ctx context.Context, token string) (*models.TripShareLink, error) {
	link, err := s.links.GetActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Share link not found")
		}
		return nil, fmt.Errorf("failed to resolve share link: %w", err)
	}
	return link, nil
}

// Revoke flips a link inactive. Owner-only.
func (s *ShareLinkService) Revoke(ctx context.Context, caller *models.AppUser, token string) error {
	link, err := s.links.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Share link not found")
		}
		return fmt.Errorf("failed to load share link: %w", err)
	}

	trip, err := s.trips.GetByID(ctx, link.TripID)
	if err != nil {
		return fmt.Errorf("failed to load trip: %w", err)
	}
	if trip.OwnerID != caller.ID {
		return apperr.Forbidden("Only the trip owner can revoke share links")
	}

	if err := s.links.Revoke(ctx, token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Share link not found")
		}
		return fmt.Errorf("failed to revoke share link: %w", err)
	}
	return nil
}
