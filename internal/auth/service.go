// Package auth implements the account lifecycle: registration, login,
// password recovery and password reset.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/audit"
	"github.com/daap14/parley/internal/clock"
	"github.com/daap14/parley/internal/credential"
	"github.com/daap14/parley/internal/email"
	"github.com/daap14/parley/internal/password"
	"github.com/daap14/parley/internal/requestid"
	"github.com/daap14/parley/internal/team"
	"github.com/daap14/parley/internal/user"
	"github.com/daap14/parley/internal/worker"
)

// EmailVerifier validates an address before an account is created.
type EmailVerifier interface {
	Verify(ctx context.Context, address string) error
}

// PasswordPolicy rejects weak or breached passwords.
type PasswordPolicy interface {
	Check(ctx context.Context, pw string) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Compare(pw, encoded string) (bool, error)
}

// AuditRecorder writes audit entries without blocking.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// TaskSubmitter accepts background tasks.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// SessionRevoker destroys every session of a user.
type SessionRevoker interface {
	DestroyAllForUser(ctx context.Context, userID uuid.UUID) error
}

// RecoveryNotifier delivers a recovery code to the account owner.
type RecoveryNotifier interface {
	SendRecoveryCode(ctx context.Context, toEmail, code string) error
}

// ProfileSyncer builds the task that backfills a profile after registration.
type ProfileSyncer interface {
	Task(userID uuid.UUID, email string) worker.Task
}

// Observer is notified of each operation's outcome.
type Observer interface {
	RecordAuth(operation string, err error)
}

// Deps holds the Service's collaborators. Notifier, Profiles and Observer
// are optional.
type Deps struct {
	Repos    Repositories
	Tx       TxRunner
	Email    EmailVerifier
	Policy   PasswordPolicy
	Hasher   PasswordHasher
	Audit    AuditRecorder
	Tasks    TaskSubmitter
	Sessions SessionRevoker
	Notifier RecoveryNotifier
	Profiles ProfileSyncer
	Observer Observer
	Clock    clock.Clock
	Random   io.Reader
}

// Service orchestrates the identity collaborators.
type Service struct {
	deps Deps

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a Service. A nil Clock or Random defaults to the real
// clock and crypto/rand.
func NewService(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Random == nil {
		deps.Random = rand.Reader
	}
	return &Service{deps: deps}
}

// Register creates a user with a credential, a personal team and an owner
// membership of that team. Email and password are validated before anything
// is written, and the four rows are committed in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (result *RegisterResult, err error) {
	defer func() { s.observe("register", err) }()

	address := email.Normalize(in.Email)
	if err := s.deps.Email.Verify(ctx, address); err != nil {
		return nil, err
	}
	if err := s.deps.Policy.Check(ctx, in.Password); err != nil {
		return nil, err
	}

	_, err = s.deps.Repos.Users.GetByEmail(ctx, address)
	switch {
	case err == nil:
		return nil, ErrUserAlreadyExists
	case !errors.Is(err, user.ErrUserNotFound):
		return nil, fmt.Errorf("checking existing user: %w", err)
	}

	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	var displayName *string
	if in.DisplayName != nil {
		displayName = user.SanitizeDisplayName(*in.DisplayName)
	}

	now := s.deps.Clock.Now()
	err = s.deps.Tx.InTx(ctx, func(repos Repositories) error {
		u := &user.User{Email: address, DisplayName: displayName, Role: user.RoleUser}
		if err := repos.Users.Create(ctx, u); err != nil {
			if errors.Is(err, user.ErrEmailTaken) {
				return ErrUserAlreadyExists
			}
			return fmt.Errorf("creating user: %w", err)
		}

		if err := repos.Credentials.Create(ctx, &credential.Credential{UserID: u.ID, PasswordHash: hash}); err != nil {
			return fmt.Errorf("creating credential: %w", err)
		}

		t := &team.Team{Name: team.PersonalTeamName}
		if err := repos.Teams.Create(ctx, t); err != nil {
			return fmt.Errorf("creating team: %w", err)
		}

		m := &team.Membership{UserID: u.ID, TeamID: t.ID, Role: team.RoleOwner, AcceptedAt: &now}
		if err := repos.Memberships.Create(ctx, m); err != nil {
			return fmt.Errorf("creating membership: %w", err)
		}
		m.Team = t

		result = &RegisterResult{User: u, Team: t, Membership: m}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	u := result.User
	if u.DisplayName == nil && s.deps.Profiles != nil {
		task := s.deps.Profiles.Task(u.ID, u.Email)
		task.RequestID = requestid.FromContext(ctx)
		if err := s.deps.Tasks.Submit(task); err != nil {
			slog.Warn("scheduling profile sync", "userId", u.ID, "error", err)
		}
	}

	s.deps.Audit.Record(ctx, audit.Entry{
		UserID:    &u.ID,
		Action:    audit.ActionUserRegister,
		Auditable: audit.Ref("user", u.ID),
	})
	s.deps.Audit.Record(ctx, audit.Entry{
		UserID:    &u.ID,
		Action:    audit.ActionAcceptsMembership,
		Auditable: audit.Ref("membership", result.Membership.ID),
		Payload:   map[string]any{"teamId": result.Team.ID.String(), "role": result.Membership.Role},
	})

	return result, nil
}

// Login verifies an email and password pair. Every failure to authenticate
// returns ErrInvalidCredentials, and a hash comparison is performed even when
// the account does not exist.
func (s *Service) Login(ctx context.Context, in LoginInput) (result *LoginResult, err error) {
	defer func() { s.observe("login", err) }()

	address := email.Normalize(in.Email)
	u, err := s.deps.Repos.Users.GetByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.compareDummy(in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	cred, err := s.deps.Repos.Credentials.FindByUser(ctx, u.ID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			s.compareDummy(in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding credential: %w", err)
	}

	ok, err := s.deps.Hasher.Compare(in.Password, cred.PasswordHash)
	if err != nil {
		if errors.Is(err, password.ErrMalformedHash) {
			slog.Error("stored password hash is malformed", "userId", u.ID)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("comparing password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	// The user remembered their password; a pending recovery code is void.
	if cred.ResetToken != nil {
		if err := s.deps.Repos.Credentials.RevokeResetToken(ctx, u.ID); err != nil {
			slog.Warn("revoking reset token after login", "userId", u.ID, "error", err)
		}
	}

	memberships, err := s.deps.Repos.Memberships.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}

	s.deps.Audit.Record(ctx, audit.Entry{
		UserID:    &u.ID,
		Action:    audit.ActionUserLogin,
		Auditable: audit.Ref("user", u.ID),
	})

	return &LoginResult{
		User:        u,
		Team:        team.PrimaryTeam(memberships),
		Memberships: memberships,
	}, nil
}

// compareDummy spends the same hashing effort as a real comparison.
func (s *Service) compareDummy(pw string) {
	s.dummyOnce.Do(func() {
		hash, err := s.deps.Hasher.Hash("parley-timing-equalizer")
		if err != nil {
			slog.Warn("computing dummy password hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.deps.Hasher.Compare(pw, s.dummyHash)
	}
}

func (s *Service) observe(operation string, err error) {
	if s.deps.Observer != nil {
		s.deps.Observer.RecordAuth(operation, err)
	}
}
