package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"tripmate-backend/internal/apperr"
	"tripmate-backend/internal/mailer"
	"tripmate-backend/internal/models"
	"tripmate-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// CollaboratorStore is the collaborator persistence the invitation engine needs.
type CollaboratorStore interface {
	Create(ctx context.Context, c *models.TripCollaborator) error
	GetByInvitedEmail(ctx context.Context, tripID, email string) (*models.TripCollaborator, error)
	GetByToken(ctx context.Context, token string) (*models.TripCollaborator, error)
	Redeem(ctx context.Context, token string, user *models.AppUser) (*models.TripCollaborator, bool, error)
	ListByTrip(ctx context.Context, tripID string) ([]models.TripCollaborator, error)
}

// InvitationService owns the invitation lifecycle: issue, preview, redeem.
type InvitationService struct {
	trips           TripStore
	collabs         CollaboratorStore
	mail            mailer.Mailer
	frontendBaseURL string
}

// NewInvitationService creates a new invitation service
func NewInvitationService(trips TripStore, collabs CollaboratorStore, mail mailer.Mailer, frontendBaseURL string) *InvitationService {
	return &InvitationService{
		trips:           trips,
		collabs:         collabs,
		mail:            mail,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
	}
}

// NewInviteToken mints a 256-bit URL-safe invitation token.
func NewInviteToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Issue creates a pending invitation and dispatches the notification email
// in the background. The caller never waits on mailer I/O, and a mailer
// failure never invalidates the invitation row.
func (s *InvitationService) Issue(ctx context.Context, caller *models.AppUser, tripID, email string, role models.CollaboratorRole) (*models.TripCollaborator, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Trip not found")
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip.OwnerID != caller.ID {
		return nil, apperr.Forbidden("Only the trip owner can invite collaborators")
	}

	existing, err := s.collabs.GetByInvitedEmail(ctx, tripID, email)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing invitation: %w", err)
	}
	if existing != nil {
		if existing.Status == models.CollaboratorStatusActive {
			return nil, apperr.AlreadyMember()
		}
		return nil, apperr.AlreadyInvited()
	}

	token := NewInviteToken()
	invitation := &models.TripCollaborator{
		ID:           uuid.New().String(),
		TripID:       tripID,
		InvitedEmail: &email,
		Role:         role,
		Status:       models.CollaboratorStatusInvited,
		InviteToken:  &token,
		InvitedAt:    time.Now(),
	}
	if err := s.collabs.Create(ctx, invitation); err != nil {
		// Two concurrent invites for the same email can both pass the
		// duplicate check; the partial unique index catches the loser.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.AlreadyInvited()
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	go s.dispatchInvitation(trip.Title, caller.Email, email, role, token)

	log.Info().
		Str("trip_id", tripID).
		Str("invited_email", email).
		Str("role", string(role)).
		Msg("Invitation issued")

	return invitation, nil
}

// dispatchInvitation runs detached from the request; client cancellation
// must not abort the notification.
func (s *InvitationService) dispatchInvitation(tripTitle, inviterEmail, to string, role models.CollaboratorRole, token string) {
	acceptURL := fmt.Sprintf("%s/trip-invitation/%s", s.frontendBaseURL, token)
	body, err := mailer.RenderInvitation(mailer.InvitationData{
		TripTitle:    tripTitle,
		InviterEmail: inviterEmail,
		Role:         string(role),
		AcceptURL:    acceptURL,
	})
	if err != nil {
		log.Error().Err(err).Str("invited_email", to).Msg("Failed to render invitation email")
		return
	}

	switch s.mail.Send(context.Background(), to, mailer.InvitationSubject(tripTitle), body) {
	case mailer.OutcomeOK:
		log.Info().Str("invited_email", to).Msg("Invitation email sent")
	case mailer.OutcomeTransient:
		log.Warn().Str("invited_email", to).Msg("Transient mailer failure, invitation token remains valid")
	case mailer.OutcomePermanent:
		log.Error().Str("invited_email", to).Msg("Permanent mailer failure, invitation token remains valid")
	}
}

// InvitePreview is the unauthenticated view of a pending invitation.
type InvitePreview struct {
	TripID       string                  `json:"trip_id"`
	TripTitle    string                  `json:"trip_title"`
	InvitedEmail string                  `json:"invited_email"`
	Role         models.CollaboratorRole `json:"role"`
	InvitedAt    time.Time               `json:"invited_at"`
}

// Preview returns the pending invitation behind a token. Consumed or unknown
// tokens are indistinguishable: both are NotFound.
func (s *InvitationService) Preview(ctx context.Context, token string) (*InvitePreview, error) {
	invitation, err := s.collabs.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Invitation not found")
		}
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}

	trip, err := s.trips.GetByID(ctx, invitation.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}

	invitedEmail := ""
	if invitation.InvitedEmail != nil {
		invitedEmail = *invitation.InvitedEmail
	}
	return &InvitePreview{
		TripID:       trip.ID,
		TripTitle:    trip.Title,
		InvitedEmail: invitedEmail,
		Role:         invitation.Role,
		InvitedAt:    invitation.InvitedAt,
	}, nil
}

// RedeemResult is the response payload of a successful redemption.
type RedeemResult struct {
	TripID          string                  `json:"trip_id"`
	TripTitle       string                  `json:"trip_title"`
	Role            models.CollaboratorRole `json:"role"`
	AlreadyAccepted bool                    `json:"already_accepted"`
}

// Redeem consumes an invitation token for the authenticated caller.
func (s *InvitationService) Redeem(ctx context.Context, caller *models.AppUser, token string) (*RedeemResult, error) {
	collaborator, alreadyAccepted, err := s.collabs.Redeem(ctx, token, caller)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Invitation not found")
		}
		var mismatch *repository.EmailMismatchError
		if errors.As(err, &mismatch) {
			return nil, apperr.WrongIdentity(fmt.Sprintf(
				"This invitation was sent to %s. Sign in with that email address to accept it.",
				mismatch.InvitedEmail))
		}
		return nil, fmt.Errorf("failed to redeem invitation: %w", err)
	}

	trip, err := s.trips.GetByID(ctx, collaborator.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}

	log.Info().
		Str("trip_id", trip.ID).
		Str("user_id", caller.ID).
		Bool("already_accepted", alreadyAccepted).
		Msg("Invitation redeemed")

	return &RedeemResult{
		TripID:          trip.ID,
		TripTitle:       trip.Title,
		Role:            collaborator.Role,
		AlreadyAccepted: alreadyAccepted,
	}, nil
}

// ListForOwner returns all collaborator rows of a trip, pending tokens
// included, so the owner can re-send a link when the email never arrived.
func (s *InvitationService) ListForOwner(ctx context.Context, caller *models.AppUser, tripID string) ([]models.TripCollaborator, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Trip not found")
		}
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip.OwnerID != caller.ID {
		return nil, apperr.Forbidden("Only the trip owner can list collaborators")
	}
	return s.collabs.ListByTrip(ctx, tripID)
}
