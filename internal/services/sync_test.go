package services

import (
	"context"
	"testing"
	"time"

	"tripmate-backend/internal/apperr"
	"tripmate-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncStore struct {
	applied    []models.SyncChange
	state      *models.TripState
	serverTime time.Time
}

func (f *fakeSyncStore) ApplyAndRead(ctx context.Context, tripID string, changes []models.SyncChange) (*models.TripState, time.Time, error) {
	f.applied = append(f.applied, changes...)
	return f.state, f.serverTime, nil
}

func (f *fakeSyncStore) KnownKind(kind string) bool {
	switch kind {
	case "trip", "trip_day", "itinerary_item":
		return true
	}
	return false
}

func newTestSync(active map[string]models.CollaboratorRole) (*SyncService, *fakeSyncStore) {
	store := &fakeSyncStore{
		state:      &models.TripState{Trip: models.Trip{ID: "42", Title: "Trip to Japan"}},
		serverTime: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	return NewSyncService(newTestAccess(active), store), store
}

func TestSyncUnknownKindRejectedOthersApplied(t *testing.T) {
	svc, store := newTestSync(nil)
	owner := testOwner()

	changes := []models.SyncChange{
		{Kind: "trip", Fields: map[string]any{"title": "New title"}},
		{Kind: "budget_line", ID: "b1", Fields: map[string]any{"amount": 12.5}},
		{Kind: "trip_day", ID: "d1", Fields: map[string]any{"note": "rainy day"}},
	}
	result, err := svc.Apply(context.Background(), owner, "42", nil, changes)
	require.NoError(t, err)

	require.Len(t, result.RejectedChanges, 1)
	assert.Equal(t, 1, result.RejectedChanges[0].Index)
	assert.Equal(t, "budget_line", result.RejectedChanges[0].Kind)
	assert.Contains(t, result.RejectedChanges[0].Reason, "unknown entity kind")

	require.Len(t, store.applied, 2)
	assert.Equal(t, "trip", store.applied[0].Kind)
	assert.Equal(t, "trip_day", store.applied[1].Kind)
}

func TestSyncMissingEntityIDRejected(t *testing.T) {
	svc, store := newTestSync(nil)

	changes := []models.SyncChange{
		{Kind: "itinerary_item", Fields: map[string]any{"title": "Hotel"}},
	}
	result, err := svc.Apply(context.Background(), testOwner(), "42", nil, changes)
	require.NoError(t, err)
	require.Len(t, result.RejectedChanges, 1)
	assert.Equal(t, "missing entity id", result.RejectedChanges[0].Reason)
	assert.Empty(t, store.applied)
}

func TestSyncNoChangesReturnsFullState(t *testing.T) {
	svc, store := newTestSync(map[string]models.CollaboratorRole{"42|viewer-1": models.CollaboratorRoleViewer})

	viewer := &models.AppUser{ID: "viewer-1", Email: "viewer@example.com"}
	watermark := time.Now().Add(-time.Hour)
	result, err := svc.Apply(context.Background(), viewer, "42", &watermark, nil)
	require.NoError(t, err)
	assert.Empty(t, result.RejectedChanges)
	assert.Equal(t, "Trip to Japan", result.State.Trip.Title)
	assert.Equal(t, store.serverTime, result.ServerTime)
}

func TestSyncViewerCannotPushChanges(t *testing.T) {
	svc, _ := newTestSync(map[string]models.CollaboratorRole{"42|viewer-1": models.CollaboratorRoleViewer})

	viewer := &models.AppUser{ID: "viewer-1", Email: "viewer@example.com"}
	changes := []models.SyncChange{{Kind: "trip", Fields: map[string]any{"title": "hijack"}}}
	_, err := svc.Apply(context.Background(), viewer, "42", nil, changes)
	var domainErr *apperr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 403, domainErr.Status)
}

func TestSyncOutsiderForbidden(t *testing.T) {
	svc, _ := newTestSync(nil)

	stranger := &models.AppUser{ID: "stranger", Email: "s@example.com"}
	_, err := svc.Apply(context.Background(), stranger, "42", nil, nil)
	var domainErr *apperr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 403, domainErr.Status)
}
