package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daap14/parley/internal/database"
)

// PostgresRepository implements Repository.
type PostgresRepository struct {
	db database.DBTX
}

// NewRepository creates a new Repository backed by the given handle.
func NewRepository(db database.DBTX) Repository {
	return &PostgresRepository{db: db}
}

// Create inserts a session. CreatedAt and ExpiresAt must be set by the caller.
func (r *PostgresRepository) Create(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return fmt.Errorf("encoding session payload: %w", err)
	}

	query := `
		INSERT INTO sessions (user_id, expires_at, last_activity_at, user_agent, ip_address, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, updated_at`

	err = r.db.QueryRow(ctx, query,
		s.UserID,
		s.ExpiresAt,
		s.LastActivityAt,
		s.UserAgent,
		s.IPAddress,
		payload,
		s.CreatedAt,
	).Scan(&s.ID, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its UUID, expired or not.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `
		SELECT id, user_id, expires_at, last_activity_at, user_agent, ip_address,
		       payload, created_at, updated_at
		FROM sessions
		WHERE id = $1`

	var s Session
	var payload []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.ExpiresAt, &s.LastActivityAt,
		&s.UserAgent, &s.IPAddress, &payload,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if err := json.Unmarshal(payload, &s.Payload); err != nil {
		return nil, fmt.Errorf("decoding session payload: %w", err)
	}

	return &s, nil
}

// Touch records activity and sets the session's expiry.
func (r *PostgresRepository) Touch(ctx context.Context, id uuid.UUID, lastActivityAt, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET last_activity_at = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, lastActivityAt, expiresAt)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteByUser removes every session of a user.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
