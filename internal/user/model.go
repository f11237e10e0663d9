package user

import (
	"time"

	"github.com/google/uuid"
)

// Roles a user may hold.
const (
	RoleUser = "user"
	RoleRoot = "root"
)

// User represents a row in the users table.
type User struct {
	ID              uuid.UUID
	Email           string // lower-cased
	DisplayName     *string
	Role            string
	EmailVerifiedAt *time.Time
	AvatarKey       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsRoot reports whether the user holds the root role.
func (u *User) IsRoot() bool {
	return u.Role == RoleRoot
}
