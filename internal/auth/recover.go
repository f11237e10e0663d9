package auth

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/audit"
	"github.com/daap14/parley/internal/credential"
	"github.com/daap14/parley/internal/email"
	"github.com/daap14/parley/internal/user"
	"github.com/daap14/parley/internal/worker"
)

// recoveryTokenBytes yields a 16 character Base32 token.
const recoveryTokenBytes = 10

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Recover issues a single-use recovery token for the account, replacing any
// previous one. When a RecoveryNotifier is configured the token is delivered
// to the account's email in the background.
func (s *Service) Recover(ctx context.Context, in RecoverInput) (result *RecoverResult, err error) {
	defer func() { s.observe("recover", err) }()

	address := email.Normalize(in.Email)
	u, err := s.deps.Repos.Users.GetByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	cred, err := s.deps.Repos.Credentials.FindByUser(ctx, u.ID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("finding credential: %w", err)
	}

	token, err := newRecoveryToken(s.deps.Random)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Repos.Credentials.SetResetToken(ctx, u.ID, token); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("storing reset token: %w", err)
	}

	s.deps.Audit.Record(ctx, audit.Entry{
		UserID:    &u.ID,
		Action:    audit.ActionGenerateRecoveryCode,
		Auditable: audit.Ref("credential", cred.ID),
	})

	if s.deps.Notifier != nil {
		to := u.Email
		task := worker.NewTask(ctx, "recovery_email", func(ctx context.Context) error {
			return s.deps.Notifier.SendRecoveryCode(ctx, to, token)
		})
		if err := s.deps.Tasks.Submit(task); err != nil {
			slog.Warn("scheduling recovery email", "userId", u.ID, "error", err)
		}
	}

	return &RecoverResult{Token: token}, nil
}

// ResetPassword consumes a recovery token and sets a new password. The token
// stops working the moment the new hash is stored, and every session of the
// user is destroyed.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) (err error) {
	defer func() { s.observe("reset_password", err) }()

	token := strings.ToUpper(strings.TrimSpace(in.Token))
	if token == "" {
		return ErrInvalidResetToken
	}

	if err := s.deps.Policy.Check(ctx, in.Password); err != nil {
		return err
	}

	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	userID, err := s.deps.Repos.Credentials.ConsumeResetToken(ctx, token, hash)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consuming reset token: %w", err)
	}

	s.revokeSessions(ctx, userID)

	s.deps.Audit.Record(ctx, audit.Entry{
		UserID:    &userID,
		Action:    audit.ActionResetPassword,
		Auditable: audit.Ref("user", userID),
	})

	return nil
}

// revokeSessions destroys the user's sessions, handing the work to the
// background worker for retries when the inline attempt fails.
func (s *Service) revokeSessions(ctx context.Context, userID uuid.UUID) {
	err := s.deps.Sessions.DestroyAllForUser(ctx, userID)
	if err == nil {
		return
	}

	slog.Warn("revoking sessions after password reset; retrying in background", "userId", userID, "error", err)
	task := worker.NewTask(ctx, "revoke_sessions", func(ctx context.Context) error {
		return s.deps.Sessions.DestroyAllForUser(ctx, userID)
	})
	if err := s.deps.Tasks.Submit(task); err != nil {
		slog.Error("scheduling session revocation", "userId", userID, "error", err)
	}
}

func newRecoveryToken(random io.Reader) (string, error) {
	buf := make([]byte, recoveryTokenBytes)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("generating recovery token: %w", err)
	}
	return tokenEncoding.EncodeToString(buf), nil
}
