package services

import (
	"context"
	"fmt"
	"time"

	"tripmate-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// TripSyncStore merges client deltas and reads canonical state, both within
// one transaction.
type TripSyncStore interface {
	ApplyAndRead(ctx context.Context, tripID string, changes []models.SyncChange) (*models.TripState, time.Time, error)
	KnownKind(kind string) bool
}

// SyncService is the short-poll merge behind co-editing. Client changes are
// applied last-writer-wins keyed by entity id; the full canonical trip is
// always a legal response regardless of the client watermark.
type SyncService struct {
	access *AccessService
	trips  TripSyncStore
}

// NewSyncService creates a new sync service
func NewSyncService(access *AccessService, trips TripSyncStore) *SyncService {
	return &SyncService{access: access, trips: trips}
}

// SyncResult is the outcome of a sync round-trip.
type SyncResult struct {
	State           *models.TripState       `json:"state"`
	RejectedChanges []models.RejectedChange `json:"rejected_changes,omitempty"`
	ServerTime      time.Time               `json:"server_timestamp"`
}

// Apply merges the given changes and returns the canonical trip state.
// Changes of unknown kinds are reported as rejected while the rest still
// apply; lastSyncedAt is accepted as a client watermark but the response is
// always full state.
func (s *SyncService) Apply(ctx context.Context, caller *models.AppUser, tripID string, lastSyncedAt *time.Time, changes []models.SyncChange) (*SyncResult, error) {
	trip, err := s.access.RequireAccess(ctx, tripID, caller.ID)
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		if err := s.access.RequireEditor(ctx, trip, caller.ID); err != nil {
			return nil, err
		}
	}

	var applicable []models.SyncChange
	var rejected []models.RejectedChange
	for i, change := range changes {
		switch {
		case !s.trips.KnownKind(change.Kind):
			rejected = append(rejected, models.RejectedChange{
				Index:  i,
				Kind:   change.Kind,
				Reason: fmt.Sprintf("unknown entity kind %q", change.Kind),
			})
		case change.Kind != "trip" && change.ID == "":
			rejected = append(rejected, models.RejectedChange{
				Index:  i,
				Kind:   change.Kind,
				Reason: "missing entity id",
			})
		default:
			applicable = append(applicable, change)
		}
	}

	state, serverTime, err := s.trips.ApplyAndRead(ctx, tripID, applicable)
	if err != nil {
		return nil, fmt.Errorf("failed to sync trip: %w", err)
	}

	if len(rejected) > 0 {
		log.Warn().
			Str("trip_id", tripID).
			Int("rejected", len(rejected)).
			Int("applied", len(applicable)).
			Msg("Sync merge rejected changes")
	}

	return &SyncResult{
		State:           state,
		RejectedChanges: rejected,
		ServerTime:      serverTime,
	}, nil
}
