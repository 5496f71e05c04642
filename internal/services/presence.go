package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"tripmate-backend/internal/apperr"
)

// Authorizer answers whether a user may access a trip.
type Authorizer interface {
	MayAccess(ctx context.Context, tripID, userID string) (bool, error)
}

// PresenceRegistry is process-local soft state: trip -> user -> last seen.
// It is advisory and not persisted; a restart zeroes it. Clients touch at
// most every 10s and anything unseen for the TTL counts as offline.
type PresenceRegistry struct {
	access Authorizer
	ttl    time.Duration

	mu    sync.Mutex
	trips map[string]map[string]time.Time

	now func() time.Time
}

// NewPresenceRegistry creates a new presence registry
func NewPresenceRegistry(access Authorizer, ttl time.Duration) *PresenceRegistry {
	return &PresenceRegistry{
		access: access,
		ttl:    ttl,
		trips:  make(map[string]map[string]time.Time),
		now:    time.Now,
	}
}

// Touch records the caller as online on the trip, evicts stale entries and
// returns the surviving user ids with the server timestamp.
func (p *PresenceRegistry) Touch(ctx context.Context, tripID, userID string) ([]string, time.Time, error) {
	allowed, err := p.access.MayAccess(ctx, tripID, userID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !allowed {
		return nil, time.Time{}, apperr.Forbidden("")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	members := p.trips[tripID]
	if members == nil {
		members = make(map[string]time.Time)
		p.trips[tripID] = members
	}
	members[userID] = now

	cutoff := now.Add(-p.ttl)
	online := make([]string, 0, len(members))
	for id, lastSeen := range members {
		if lastSeen.Before(cutoff) {
			delete(members, id)
			continue
		}
		online = append(online, id)
	}
	if len(members) == 0 {
		delete(p.trips, tripID)
	}
	sort.Strings(online)

	return online, now, nil
}
