package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daap14/parley/internal/database"
)

const userColumns = `id, email, display_name, role, email_verified_at, avatar_key, created_at, updated_at`

// PostgresRepository implements Repository on top of a pool or transaction.
type PostgresRepository struct {
	db database.DBTX
}

// NewRepository creates a new Repository backed by the given handle.
func NewRepository(db database.DBTX) Repository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user record. Email is expected to be normalized and
// DisplayName sanitized by the caller.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleUser
	}

	query := `
		INSERT INTO users (email, display_name, role, avatar_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, u.Email, u.DisplayName, u.Role, u.AvatarKey).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a single user by its normalized email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// UpdateDisplayName sets the display name of a user.
func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	query := `
		UPDATE users
		SET display_name = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, displayName)
	if err != nil {
		return fmt.Errorf("updating display name: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.Role,
		&u.EmailVerifiedAt, &u.AvatarKey,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return &u, nil
}
