package team

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateMembership is returned when the user already belongs to the team.
var ErrDuplicateMembership = errors.New("membership already exists")

// Repository provides access to the teams table.
type Repository interface {
	Create(ctx context.Context, team *Team) error
}

// MembershipRepository provides access to the memberships table.
type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	// ListByUser returns the user's memberships with Team populated, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Membership, error)
}
