package repository

import (
	"context"
	"fmt"
	"time"

	"tripmate-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for app users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreateByEmail resolves a user by email, creating a pending record on
// first sight. The upsert keeps this a single round-trip and race-safe.
func (r *UserRepository) GetOrCreateByEmail(ctx context.Context, email string) (*models.AppUser, error) {
	query := `
		INSERT INTO app_user (id, email, password_hash, full_name, role, status, created_at)
		VALUES ($1, $2, '', '', $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, full_name, role, status, created_at
	`
	var user models.AppUser
	err := r.db.QueryRow(ctx, query,
		uuid.New().String(), email, models.UserRoleNormal, models.UserStatusPending, time.Now(),
	).Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.Status, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}
	return &user, nil
}
