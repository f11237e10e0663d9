package team

import (
	"context"
	"fmt"

	"github.com/google/uuid"

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

// Create inserts a new team record.
func (r *PostgresRepository) Create(ctx context.Context, t *Team) error {
	query := `
		INSERT INTO teams (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, t.Name).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting team: %w", err)
	}

	return nil
}

// PostgresMembershipRepository implements MembershipRepository.
type PostgresMembershipRepository struct {
	db database.DBTX
}

// NewMembershipRepository creates a new MembershipRepository backed by the given handle.
func NewMembershipRepository(db database.DBTX) MembershipRepository {
	return &PostgresMembershipRepository{db: db}
}

// Create inserts a new membership record.
func (r *PostgresMembershipRepository) Create(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO memberships (user_id, team_id, role, accepted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, m.UserID, m.TeamID, m.Role, m.AcceptedAt).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateMembership
		}
		return fmt.Errorf("inserting membership: %w", err)
	}

	return nil
}

// ListByUser implements MembershipRepository.
func (r *PostgresMembershipRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	query := `
		SELECT m.id, m.user_id, m.team_id, m.role, m.accepted_at, m.created_at, m.updated_at,
		       t.id, t.name, t.created_at, t.updated_at
		FROM memberships m
		JOIN teams t ON t.id = m.team_id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC, m.id ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		var t Team
		err := rows.Scan(
			&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.AcceptedAt, &m.CreatedAt, &m.UpdatedAt,
			&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		m.Team = &t
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating membership rows: %w", err)
	}

	if memberships == nil {
		memberships = []Membership{}
	}

	return memberships, nil
}
