package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tripmate-backend/internal/mailer"
	"tripmate-backend/internal/middleware"
	"tripmate-backend/internal/models"
	"tripmate-backend/internal/repository"
	"tripmate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

// memTripStore keeps trips in memory.
type memTripStore struct {
	trips map[string]*models.Trip
}

func (m *memTripStore) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	if trip, ok := m.trips[id]; ok {
		return trip, nil
	}
	return nil, fmt.Errorf("trip not found: %w", pgx.ErrNoRows)
}

func (m *memTripStore) CopyTemplate(ctx context.Context, sourceTripID, ownerID string) (string, error) {
	source, ok := m.trips[sourceTripID]
	if !ok || source.Visibility != models.VisibilityPublic {
		return "", fmt.Errorf("trip not found: %w", pgx.ErrNoRows)
	}
	copied := *source
	copied.ID = "copy-of-" + sourceTripID
	copied.OwnerID = ownerID
	copied.Visibility = models.VisibilityPrivate
	m.trips[copied.ID] = &copied
	return copied.ID, nil
}

// memCollabStore mimics the repository's redeem semantics in memory so the
// handler tests exercise the whole invitation lifecycle.
type memCollabStore struct {
	mu   sync.Mutex
	rows map[string]*models.TripCollaborator
}

func newMemCollabStore() *memCollabStore {
	return &memCollabStore{rows: make(map[string]*models.TripCollaborator)}
}

func (m *memCollabStore) Create(ctx context.Context, c *models.TripCollaborator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.rows[c.ID] = &clone
	return nil
}

func (m *memCollabStore) GetByInvitedEmail(ctx context.Context, tripID, email string) (*models.TripCollaborator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TripID == tripID && row.InvitedEmail != nil && *row.InvitedEmail == email {
			clone := *row
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("collaborator not found: %w", pgx.ErrNoRows)
}

func (m *memCollabStore) GetByToken(ctx context.Context, token string) (*models.TripCollaborator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.pendingByToken(token)
	if row == nil {
		return nil, fmt.Errorf("collaborator not found: %w", pgx.ErrNoRows)
	}
	clone := *row
	return &clone, nil
}

func (m *memCollabStore) pendingByToken(token string) *models.TripCollaborator {
	for _, row := range m.rows {
		if row.InviteToken != nil && *row.InviteToken == token && row.Status == models.CollaboratorStatusInvited {
			return row
		}
	}
	return nil
}

func (m *memCollabStore) Redeem(ctx context.Context, token string, user *models.AppUser) (*models.TripCollaborator, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.pendingByToken(token)
	if pending == nil {
		return nil, false, fmt.Errorf("collaborator not found: %w", pgx.ErrNoRows)
	}
	if pending.InvitedEmail == nil || *pending.InvitedEmail != user.Email {
		invited := ""
		if pending.InvitedEmail != nil {
			invited = *pending.InvitedEmail
		}
		return nil, false, &repository.EmailMismatchError{InvitedEmail: invited}
	}

	for _, row := range m.rows {
		if row.ID != pending.ID && row.TripID == pending.TripID &&
			row.UserID != nil && *row.UserID == user.ID && row.Status == models.CollaboratorStatusActive {
			delete(m.rows, pending.ID)
			clone := *row
			return &clone, true, nil
		}
	}

	now := time.Now()
	pending.UserID = &user.ID
	pending.Status = models.CollaboratorStatusActive
	pending.AcceptedAt = &now
	pending.InviteToken = nil
	clone := *pending
	return &clone, false, nil
}

func (m *memCollabStore) ListByTrip(ctx context.Context, tripID string) ([]models.TripCollaborator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TripCollaborator
	for _, row := range m.rows {
		if row.TripID == tripID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memCollabStore) HasActive(ctx context.Context, tripID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TripID == tripID && row.UserID != nil && *row.UserID == userID && row.Status == models.CollaboratorStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCollabStore) ActiveRole(ctx context.Context, tripID, userID string) (models.CollaboratorRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TripID == tripID && row.UserID != nil && *row.UserID == userID && row.Status == models.CollaboratorStatusActive {
			return row.Role, nil
		}
	}
	return "", fmt.Errorf("no active collaborator: %w", pgx.ErrNoRows)
}

// memShareStore keeps share links in memory.
type memShareStore struct {
	mu    sync.Mutex
	links map[string]*models.TripShareLink
}

func newMemShareStore() *memShareStore {
	return &memShareStore{links: make(map[string]*models.TripShareLink)}
}

func (m *memShareStore) Create(ctx context.Context, link *models.TripShareLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *link
	m.links[link.Token] = &clone
	return nil
}

func (m *memShareStore) GetActiveByToken(ctx context.Context, token string) (*models.TripShareLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[token]; ok && link.IsActive {
		clone := *link
		return &clone, nil
	}
	return nil, fmt.Errorf("share link not found: %w", pgx.ErrNoRows)
}

func (m *memShareStore) GetByToken(ctx context.Context, token string) (*models.TripShareLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[token]; ok {
		clone := *link
		return &clone, nil
	}
	return nil, fmt.Errorf("share link not found: %w", pgx.ErrNoRows)
}

func (m *memShareStore) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[token]
	if !ok {
		return fmt.Errorf("share link not found: %w", pgx.ErrNoRows)
	}
	link.IsActive = false
	return nil
}

// memSyncStore records applied changes and serves a canned state.
type memSyncStore struct {
	applied []models.SyncChange
	state   *models.TripState
}

func (m *memSyncStore) ApplyAndRead(ctx context.Context, tripID string, changes []models.SyncChange) (*models.TripState, time.Time, error) {
	m.applied = append(m.applied, changes...)
	return m.state, time.Now(), nil
}

func (m *memSyncStore) KnownKind(kind string) bool {
	switch kind {
	case "trip", "trip_day", "itinerary_item":
		return true
	}
	return false
}

type chanMailer struct {
	outcome mailer.Outcome
	sent    chan struct{ to, subject, body string }
}

func newChanMailer() *chanMailer {
	return &chanMailer{outcome: mailer.OutcomeOK, sent: make(chan struct{ to, subject, body string }, 4)}
}

func (m *chanMailer) Send(ctx context.Context, to, subject, body string) mailer.Outcome {
	m.sent <- struct{ to, subject, body string }{to, subject, body}
	return m.outcome
}

type userResolver struct {
	mu    sync.Mutex
	users map[string]*models.AppUser
}

func (r *userResolver) GetOrCreateByEmail(ctx context.Context, email string) (*models.AppUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users == nil {
		r.users = make(map[string]*models.AppUser)
	}
	if user, ok := r.users[email]; ok {
		return user, nil
	}
	user := &models.AppUser{
		ID:     "uid-" + email,
		Email:  email,
		Role:   models.UserRoleNormal,
		Status: models.UserStatusPending,
	}
	r.users[email] = user
	return user, nil
}

type testEnv struct {
	router  *chi.Mux
	trips   *memTripStore
	collabs *memCollabStore
	shares  *memShareStore
	sync    *memSyncStore
	mail    *chanMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	trips := &memTripStore{trips: map[string]*models.Trip{
		"42":    {ID: "42", OwnerID: "uid-owner@example.com", Title: "Trip to Japan", Visibility: models.VisibilityPrivate},
		"pub-9": {ID: "pub-9", OwnerID: "uid-curator@example.com", Title: "Weekend in Rome", Visibility: models.VisibilityPublic},
	}}
	collabs := newMemCollabStore()
	shares := newMemShareStore()
	syncStore := &memSyncStore{state: &models.TripState{Trip: models.Trip{ID: "42", Title: "Trip to Japan"}}}
	mail := newChanMailer()

	access := services.NewAccessService(trips, collabs)
	invitations := services.NewInvitationService(trips, collabs, mail, "https://app.example.com")
	links := services.NewShareLinkService(trips, shares)
	syncSvc := services.NewSyncService(access, syncStore)
	presence := services.NewPresenceRegistry(access, 20*time.Second)
	templates := services.NewTemplateService(trips)

	validate := validator.New()
	invitationHandler := NewInvitationHandler(invitations, validate)
	shareHandler := NewShareLinkHandler(links, validate)
	syncHandler := NewSyncHandler(syncSvc, validate)
	presenceHandler := NewPresenceHandler(presence)
	templateHandler := NewTemplateHandler(templates, validate)

	r := chi.NewRouter()
	r.Use(middleware.Identity(testSecret, &userResolver{}))
	r.Route("/api/f1", func(r chi.Router) {
		r.Post("/trips/{trip_id}/invite/", invitationHandler.Invite)
		r.Get("/trips/{trip_id}/collaborators/", invitationHandler.ListCollaborators)
		r.Get("/trip-invitation/{token}/accept/", invitationHandler.Preview)
		r.Post("/trip-invitation/{token}/accept/", invitationHandler.Accept)
	})
	r.Route("/api/f2", func(r chi.Router) {
		r.Post("/share/create/", shareHandler.Create)
		r.Get("/share/{token}/", shareHandler.Resolve)
		r.Post("/share/{token}/revoke/", shareHandler.Revoke)
		r.Post("/sync/", syncHandler.Sync)
		r.Post("/trips/{trip_id}/presence/", presenceHandler.Touch)
		r.Post("/copy-template/", templateHandler.Copy)
	})

	return &testEnv{router: r, trips: trips, collabs: collabs, shares: shares, sync: syncStore, mail: mail}
}

func bearerFor(t *testing.T, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (e *testEnv) do(t *testing.T, method, path, authEmail string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authEmail != "" {
		req.Header.Set("Authorization", bearerFor(t, authEmail))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func (e *testEnv) waitForMail(t *testing.T) struct{ to, subject, body string } {
	t.Helper()
	select {
	case m := <-e.mail.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mailer dispatch")
		return struct{ to, subject, body string }{}
	}
}
