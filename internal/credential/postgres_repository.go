package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daap14/parley/internal/database"
)

// PostgresRepository implements Repository on top of a pool or transaction.
type PostgresRepository struct {
	db database.DBTX
}

// NewRepository creates a new Repository backed by the given handle.
func NewRepository(db database.DBTX) Repository {
	return &PostgresRepository{db: db}
}

// Create inserts a new credential record.
func (r *PostgresRepository) Create(ctx context.Context, c *Credential) error {
	query := `
		INSERT INTO users_credentials (user_id, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, c.UserID, c.PasswordHash).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting credential: %w", err)
	}

	return nil
}

// FindByUser retrieves the credential of a user.
func (r *PostgresRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*Credential, error) {
	query := `
		SELECT id, user_id, password_hash, reset_token, created_at, updated_at
		FROM users_credentials
		WHERE user_id = $1`

	var c Credential
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&c.ID, &c.UserID, &c.PasswordHash, &c.ResetToken, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	return &c, nil
}

// SetResetToken stores token on the user's credential, replacing any prior one.
func (r *PostgresRepository) SetResetToken(ctx context.Context, userID uuid.UUID, token string) error {
	return r.updateResetToken(ctx, userID, &token)
}

// RevokeResetToken clears the user's reset token.
func (r *PostgresRepository) RevokeResetToken(ctx context.Context, userID uuid.UUID) error {
	return r.updateResetToken(ctx, userID, nil)
}

// ConsumeResetToken implements Repository.
func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string) (uuid.UUID, error) {
	query := `
		UPDATE users_credentials
		SET password_hash = $2, reset_token = NULL, updated_at = NOW()
		WHERE reset_token = $1
		RETURNING user_id`

	var userID uuid.UUID
	err := r.db.QueryRow(ctx, query, token, passwordHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("consuming reset token: %w", err)
	}

	return userID, nil
}

func (r *PostgresRepository) updateResetToken(ctx context.Context, userID uuid.UUID, token *string) error {
	query := `
		UPDATE users_credentials
		SET reset_token = $2, updated_at = NOW()
		WHERE user_id = $1`

	result, err := r.db.Exec(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("updating reset token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
