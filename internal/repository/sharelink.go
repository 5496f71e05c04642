package repository

import (
	"context"
	"fmt"

	"tripmate-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ShareLinkRepository handles database operations for trip share links
type ShareLinkRepository struct {
	db *pgxpool.Pool
}

// NewShareLinkRepository creates a new share link repository
func NewShareLinkRepository(db *pgxpool.Pool) *ShareLinkRepository {
	return &ShareLinkRepository{db: db}
}

const shareLinkColumns = `id, trip_id, token, permission, expires_at, is_active, created_at`

func scanShareLink(row pgx.Row) (*models.TripShareLink, error) {
	var link models.TripShareLink
	err := row.Scan(&link.ID, &link.TripID, &link.Token, &link.Permission,
		&link.ExpiresAt, &link.IsActive, &link.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("share link not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return &link, nil
}

// Create inserts a new share link
func (r *ShareLinkRepository) Create(ctx context.Context, link *models.TripShareLink) error {
	query := `
		INSERT INTO trip_share_link (id, trip_id, token, permission, expires_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, link.ID, link.TripID, link.Token, link.Permission,
		link.ExpiresAt, link.IsActive, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}
	return nil
}

// GetActiveByToken retrieves an active share link by token. Expiry is
// advisory and left to the caller.
func (r *ShareLinkRepository) GetActiveByToken(ctx context.Context, token string) (*models.TripShareLink, error) {
	query := `SELECT ` + shareLinkColumns + ` FROM trip_share_link WHERE token = $1 AND is_active = true`
	return scanShareLink(r.db.QueryRow(ctx, query, token))
}

// GetByToken retrieves a share link by token regardless of state
func (r *ShareLinkRepository) GetByToken(ctx context.Context, token string) (*models.TripShareLink, error) {
	query := `SELECT ` + shareLinkColumns + ` FROM trip_share_link WHERE token = $1`
	return scanShareLink(r.db.QueryRow(ctx, query, token))
}

// Revoke flips a link inactive
func (r *ShareLinkRepository) Revoke(ctx context.Context, token string) error {
	result, err := r.db.Exec(ctx, `UPDATE trip_share_link SET is_active = false WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("share link not found: %w", pgx.ErrNoRows)
	}
	return nil
}
