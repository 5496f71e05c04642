package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tripmate-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EmailMismatchError reports a redemption attempt by an account whose email
// does not match the invitation.
type EmailMismatchError struct {
	InvitedEmail string
}

func (e *EmailMismatchError) Error() string {
	return fmt.Sprintf("invitation was sent to %s", e.InvitedEmail)
}

// CollaboratorRepository handles database operations for trip collaborators
type CollaboratorRepository struct {
	db *pgxpool.Pool
}

// NewCollaboratorRepository creates a new collaborator repository
func NewCollaboratorRepository(db *pgxpool.Pool) *CollaboratorRepository {
	return &CollaboratorRepository{db: db}
}

const collaboratorColumns = `id, trip_id, user_id, invited_email, role, status, invite_token, invited_at, accepted_at`

func scanCollaborator(row pgx.Row) (*models.TripCollaborator, error) {
	var c models.TripCollaborator
	err := row.Scan(&c.ID, &c.TripID, &c.UserID, &c.InvitedEmail, &c.Role, &c.Status,
		&c.InviteToken, &c.InvitedAt, &c.AcceptedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("collaborator not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get collaborator: %w", err)
	}
	return &c, nil
}

// Create inserts a new collaborator row
func (r *CollaboratorRepository) Create(ctx context.Context, c *models.TripCollaborator) error {
	query := `
		INSERT INTO trip_collaborator (id, trip_id, user_id, invited_email, role, status, invite_token, invited_at, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query, c.ID, c.TripID, c.UserID, c.InvitedEmail, c.Role,
		c.Status, c.InviteToken, c.InvitedAt, c.AcceptedAt)
	if err != nil {
		return fmt.Errorf("failed to create collaborator: %w", err)
	}
	return nil
}

// GetByInvitedEmail retrieves the collaborator row for (trip, invited email)
func (r *CollaboratorRepository) GetByInvitedEmail(ctx context.Context, tripID, email string) (*models.TripCollaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM trip_collaborator WHERE trip_id = $1 AND invited_email = $2`
	return scanCollaborator(r.db.QueryRow(ctx, query, tripID, email))
}

// GetByToken retrieves a still-pending invitation by its token
func (r *CollaboratorRepository) GetByToken(ctx context.Context, token string) (*models.TripCollaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM trip_collaborator WHERE invite_token = $1 AND status = $2`
	return scanCollaborator(r.db.QueryRow(ctx, query, token, models.CollaboratorStatusInvited))
}

// ListByTrip retrieves all collaborator rows for a trip
func (r *CollaboratorRepository) ListByTrip(ctx context.Context, tripID string) ([]models.TripCollaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM trip_collaborator WHERE trip_id = $1 ORDER BY invited_at, id`
	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []models.TripCollaborator
	for rows.Next() {
		var c models.TripCollaborator
		if err := rows.Scan(&c.ID, &c.TripID, &c.UserID, &c.InvitedEmail, &c.Role, &c.Status,
			&c.InviteToken, &c.InvitedAt, &c.AcceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collaborator: %w", err)
		}
		collaborators = append(collaborators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	return collaborators, nil
}

// HasActive checks whether the user is an active collaborator on the trip
func (r *CollaboratorRepository) HasActive(ctx context.Context, tripID, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM trip_collaborator WHERE trip_id = $1 AND user_id = $2 AND status = $3)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, tripID, userID, models.CollaboratorStatusActive).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active collaborator: %w", err)
	}
	return exists, nil
}

// ActiveRole returns the active collaborator role of the user on the trip,
// or pgx.ErrNoRows (wrapped) when there is none.
func (r *CollaboratorRepository) ActiveRole(ctx context.Context, tripID, userID string) (models.CollaboratorRole, error) {
	query := `SELECT role FROM trip_collaborator WHERE trip_id = $1 AND user_id = $2 AND status = $3`
	var role models.CollaboratorRole
	err := r.db.QueryRow(ctx, query, tripID, userID, models.CollaboratorStatusActive).Scan(&role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("no active collaborator: %w", err)
		}
		return "", fmt.Errorf("failed to get collaborator role: %w", err)
	}
	return role, nil
}

// Redeem consumes an invitation token for the given user inside a single
// locking transaction. It returns the resulting active row and whether the
// user was already a member through another row.
//
// After commit there is at most one active row per (trip, user), and no
// invited row retains a consumed token.
func (r *CollaboratorRepository) Redeem(ctx context.Context, token string, user *models.AppUser) (*models.TripCollaborator, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin redeem transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pending, err := scanCollaborator(tx.QueryRow(ctx,
		`SELECT `+collaboratorColumns+` FROM trip_collaborator
		 WHERE invite_token = $1 AND status = $2
		 FOR UPDATE`,
		token, models.CollaboratorStatusInvited))
	if err != nil {
		return nil, false, err
	}

	if pending.InvitedEmail == nil || *pending.InvitedEmail != user.Email {
		invited := ""
		if pending.InvitedEmail != nil {
			invited = *pending.InvitedEmail
		}
		return nil, false, &EmailMismatchError{InvitedEmail: invited}
	}

	// Lock any row already held by this user on the trip so two concurrent
	// redemptions of sibling tokens serialize here.
	existing, err := scanCollaborator(tx.QueryRow(ctx,
		`SELECT `+collaboratorColumns+` FROM trip_collaborator
		 WHERE trip_id = $1 AND user_id = $2 AND status = $3
		 FOR UPDATE`,
		pending.TripID, user.ID, models.CollaboratorStatusActive))
	switch {
	case err == nil && existing.ID != pending.ID:
		// Already a member through another row: the pending row is consumed
		// by deletion. This is the only path that deletes a collaborator.
		if _, err := tx.Exec(ctx, `DELETE FROM trip_collaborator WHERE id = $1`, pending.ID); err != nil {
			return nil, false, fmt.Errorf("failed to delete redundant invitation: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit redeem transaction: %w", err)
		}
		return existing, true, nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return nil, false, err
	}

	// The activation runs under a savepoint. Another transaction may have
	// activated a row for (trip, user) between our SELECTs; the partial
	// unique index then fires, which aborts everything up to the savepoint,
	// and the outer transaction stays usable to converge on the
	// already-accepted branch.
	now := time.Now()
	sp, err := tx.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open savepoint: %w", err)
	}
	_, err = sp.Exec(ctx, `
		UPDATE trip_collaborator
		SET user_id = $1, status = $2, accepted_at = $3, invite_token = NULL
		WHERE id = $4
	`, user.ID, models.CollaboratorStatusActive, now, pending.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return nil, false, fmt.Errorf("failed to roll back savepoint: %w", rbErr)
			}
			existing, rerr := scanCollaborator(tx.QueryRow(ctx,
				`SELECT `+collaboratorColumns+` FROM trip_collaborator
				 WHERE trip_id = $1 AND user_id = $2 AND status = $3`,
				pending.TripID, user.ID, models.CollaboratorStatusActive))
			if rerr != nil {
				return nil, false, rerr
			}
			if _, derr := tx.Exec(ctx, `DELETE FROM trip_collaborator WHERE id = $1`, pending.ID); derr != nil {
				return nil, false, fmt.Errorf("failed to delete redundant invitation: %w", derr)
			}
			if cerr := tx.Commit(ctx); cerr != nil {
				return nil, false, fmt.Errorf("failed to commit redeem transaction: %w", cerr)
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("failed to activate collaborator: %w", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to release savepoint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit redeem transaction: %w", err)
	}

	pending.UserID = &user.ID
	pending.Status = models.CollaboratorStatusActive
	pending.AcceptedAt = &now
	pending.InviteToken = nil
	return pending, false, nil
}
