package credential

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no credential matches.
var ErrNotFound = errors.New("credential not found")

// ErrAlreadyExists is returned when the user already has a credential.
var ErrAlreadyExists = errors.New("credential already exists")

// Repository provides access to the users_credentials table.
type Repository interface {
	Create(ctx context.Context, c *Credential) error
	FindByUser(ctx context.Context, userID uuid.UUID) (*Credential, error)
	SetResetToken(ctx context.Context, userID uuid.UUID, token string) error
	RevokeResetToken(ctx context.Context, userID uuid.UUID) error
	// ConsumeResetToken replaces the password hash of the credential holding
	// token and clears the token in one statement. It returns the owning user.
	ConsumeResetToken(ctx context.Context, token, passwordHash string) (uuid.UUID, error)
}
