package services

import (
	"context"
	"testing"
	"time"

	"tripmate-backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthorizer struct {
	allow map[string]bool
}

func (f *fakeAuthorizer) MayAccess(ctx context.Context, tripID, userID string) (bool, error) {
	if f.allow == nil {
		return true, nil
	}
	return f.allow[userID], nil
}

func newTestRegistry(ttl time.Duration) (*PresenceRegistry, *time.Time) {
	registry := NewPresenceRegistry(&fakeAuthorizer{}, ttl)
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return clock }
	return registry, &clock
}

func TestPresenceTouchReturnsCaller(t *testing.T) {
	registry, _ := newTestRegistry(20 * time.Second)

	online, serverTime, err := registry.Touch(context.Background(), "trip-7", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, online)
	assert.False(t, serverTime.IsZero())
}

func TestPresenceTTLEviction(t *testing.T) {
	registry, clock := newTestRegistry(20 * time.Second)
	ctx := context.Background()
	start := *clock

	// u1 at t=0, u2 at t=5s. At t=21s u2 is only 16s stale and survives the
	// 20s window; at t=26s it is past it and gets swept.
	_, _, err := registry.Touch(ctx, "trip-7", "u1")
	require.NoError(t, err)

	*clock = start.Add(5 * time.Second)
	online, _, err := registry.Touch(ctx, "trip-7", "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, online)

	*clock = start.Add(21 * time.Second)
	online, _, err = registry.Touch(ctx, "trip-7", "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, online)

	*clock = start.Add(26 * time.Second)
	online, _, err = registry.Touch(ctx, "trip-7", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, online)
}

func TestPresenceLaterTouchSupersedes(t *testing.T) {
	registry, clock := newTestRegistry(20 * time.Second)
	ctx := context.Background()
	start := *clock

	_, _, err := registry.Touch(ctx, "trip-7", "u1")
	require.NoError(t, err)

	// A fresh touch at t=19s keeps u1 alive well past its first deadline.
	*clock = start.Add(19 * time.Second)
	_, _, err = registry.Touch(ctx, "trip-7", "u1")
	require.NoError(t, err)

	*clock = start.Add(30 * time.Second)
	online, _, err := registry.Touch(ctx, "trip-7", "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, online)
}

func TestPresenceTripsAreIsolated(t *testing.T) {
	registry, _ := newTestRegistry(20 * time.Second)
	ctx := context.Background()

	_, _, err := registry.Touch(ctx, "trip-a", "u1")
	require.NoError(t, err)
	online, _, err := registry.Touch(ctx, "trip-b", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, online)
}

func TestPresenceForbiddenForOutsiders(t *testing.T) {
	registry := NewPresenceRegistry(&fakeAuthorizer{allow: map[string]bool{"member": true}}, 20*time.Second)

	_, _, err := registry.Touch(context.Background(), "trip-7", "stranger")
	var domainErr *apperr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 403, domainErr.Status)
}

func TestPresenceEmptyTripMapIsDropped(t *testing.T) {
	registry, clock := newTestRegistry(20 * time.Second)
	ctx := context.Background()
	start := *clock

	_, _, err := registry.Touch(ctx, "trip-7", "u1")
	require.NoError(t, err)

	// Everything for another trip far in the future; trip-7's map should be
	// swept on its next touch rather than lingering forever.
	*clock = start.Add(5 * time.Minute)
	online, _, err := registry.Touch(ctx, "trip-7", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, online)

	registry.mu.Lock()
	defer registry.mu.Unlock()
	assert.Len(t, registry.trips["trip-7"], 1)
}
