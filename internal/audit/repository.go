package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/database"
)

// Repository appends to the audit_logs table. Entries are never updated or deleted.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error)
}

// PostgresRepository implements Repository.
type PostgresRepository struct {
	db database.DBTX
}

// NewRepository creates a new Repository backed by the given handle.
func NewRepository(db database.DBTX) Repository {
	return &PostgresRepository{db: db}
}

// Insert appends an audit entry.
func (r *PostgresRepository) Insert(ctx context.Context, e *Entry) error {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_id, action, auditable, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	if err := r.db.QueryRow(ctx, query, e.UserID, e.Action, e.Auditable, raw).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// ListByUser returns a user's audit trail, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	query := `
		SELECT id, user_id, action, auditable, payload, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Auditable, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Payload); err != nil {
			return nil, fmt.Errorf("decoding audit payload: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return entries, nil
}
