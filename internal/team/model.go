package team

import (
	"time"

	"github.com/google/uuid"
)

// PersonalTeamName is the name given to the team created at registration.
const PersonalTeamName = "Personal Team"

// Membership roles.
const (
	RoleMember = "member"
	RoleOwner  = "owner"
)

// Team represents a row in the teams table.
type Team struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership represents a row in the memberships table.
type Membership struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TeamID     uuid.UUID
	Role       string // "member" or "owner"
	AcceptedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Team *Team // populated by ListByUser
}

// IsOwner reports whether the membership carries the owner role.
func (m *Membership) IsOwner() bool {
	return m.Role == RoleOwner
}

// PrimaryTeam picks the team a fresh session should be scoped to: the first
// owned team, otherwise the first team. It returns nil for no memberships.
func PrimaryTeam(memberships []Membership) *Team {
	for i := range memberships {
		if memberships[i].IsOwner() && memberships[i].Team != nil {
			return memberships[i].Team
		}
	}
	for i := range memberships {
		if memberships[i].Team != nil {
			return memberships[i].Team
		}
	}
	return nil
}
