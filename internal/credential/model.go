package credential

import (
	"time"

	"github.com/google/uuid"
)

// Credential represents a row in the users_credentials table.
// Each user has at most one.
type Credential struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	PasswordHash string
	ResetToken   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
