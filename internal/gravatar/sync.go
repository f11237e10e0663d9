package gravatar

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/user"
	"github.com/daap14/parley/internal/worker"
)

// UserUpdater is the part of user.Repository the sync job needs.
type UserUpdater interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error
}

// Syncer copies a Gravatar display name onto users that have none.
type Syncer struct {
	fetcher ProfileFetcher
	users   UserUpdater
}

// NewSyncer creates a Syncer.
func NewSyncer(fetcher ProfileFetcher, users UserUpdater) *Syncer {
	return &Syncer{fetcher: fetcher, users: users}
}

// Sync updates the user's display name from their Gravatar profile. A
// missing profile, or a user that already has a name, is not an error.
func (s *Syncer) Sync(ctx context.Context, userID uuid.UUID, email string) error {
	profile, err := s.fetcher.Profile(ctx, email)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil
		}
		return fmt.Errorf("fetching gravatar profile: %w", err)
	}

	name := user.SanitizeDisplayName(profile.DisplayName)
	if name == nil {
		return nil
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("loading user: %w", err)
	}
	if u.DisplayName != nil {
		return nil
	}

	if err := s.users.UpdateDisplayName(ctx, userID, *name); err != nil {
		return fmt.Errorf("updating display name: %w", err)
	}
	return nil
}

// Task wraps Sync as a background task.
func (s *Syncer) Task(userID uuid.UUID, email string) worker.Task {
	return worker.Task{
		Name: "gravatar_sync",
		Run: func(ctx context.Context) error {
			return s.Sync(ctx, userID, email)
		},
	}
}
