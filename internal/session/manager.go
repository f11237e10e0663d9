// Package session manages server-side sessions referenced by a signed cookie.
//
// The cookie carries an HS256 token holding only the session ID and its
// validity window. Everything else about the session, including its
// payload, lives in the sessions table. A session past its expiry is
// treated exactly like a missing one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/clock"
)

// ErrUnauthenticated is returned when a request carries no live session.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = errors.New("session secret must be at least 32 bytes")

const (
	minSecretLength          = 32
	defaultTTL               = 30 * 24 * time.Hour
	defaultCookieName        = "session"
	defaultExpiredCookieName = "expired_session"
)

// Config controls session lifetime and cookie attributes.
type Config struct {
	Secret            []byte
	TTL               time.Duration
	CookieName        string
	ExpiredCookieName string
	CookieDomain      string
	Secure            bool
}

// Manager creates, reads and destroys sessions.
type Manager struct {
	repo   Repository
	cfg    Config
	clock  clock.Clock
	signer *signer
}

// NewManager creates a Manager. Zero-valued Config fields take defaults.
func NewManager(repo Repository, cfg Config, c clock.Clock) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.ExpiredCookieName == "" {
		cfg.ExpiredCookieName = defaultExpiredCookieName
	}

	return &Manager{
		repo:   repo,
		cfg:    cfg,
		clock:  c,
		signer: &signer{secret: cfg.Secret, clock: c},
	}, nil
}

// Create persists a new session for userID and sets its cookie on w.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, userID uuid.UUID, client ClientContext, payload Payload) (*Session, error) {
	now := m.clock.Now()
	s := &Session{
		UserID:         userID,
		ExpiresAt:      now.Add(m.cfg.TTL),
		LastActivityAt: now,
		UserAgent:      client.UserAgent,
		IPAddress:      client.IP,
		Payload:        payload,
		CreatedAt:      now,
	}

	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	if err := m.setSessionCookie(w, s, now); err != nil {
		return nil, err
	}

	return s, nil
}

// Get returns the live session referenced by r's cookie, recording activity
// and sliding the expiry once less than half the TTL remains. It returns
// ErrUnauthenticated when there is no live session.
func (m *Manager) Get(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrUnauthenticated
	}

	id, err := m.signer.sessionID(cookie.Value)
	if err != nil && id == uuid.Nil {
		m.clearCookie(w, m.cfg.CookieName)
		return nil, ErrUnauthenticated
	}

	s, lookupErr := m.repo.GetByID(ctx, id)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			m.clearCookie(w, m.cfg.CookieName)
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("loading session: %w", lookupErr)
	}

	now := m.clock.Now()
	if err != nil || s.Expired(now) {
		m.expire(ctx, w, s, now)
		return nil, ErrUnauthenticated
	}

	s.LastActivityAt = now
	refresh := s.ExpiresAt.Sub(now) < m.cfg.TTL/2
	if refresh {
		s.ExpiresAt = now.Add(m.cfg.TTL)
	}

	if err := m.repo.Touch(ctx, s.ID, s.LastActivityAt, s.ExpiresAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			m.clearCookie(w, m.cfg.CookieName)
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("touching session: %w", err)
	}

	if refresh {
		if err := m.setSessionCookie(w, s, now); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Query is Get without the unauthenticated error: it returns nil, nil when
// the request has no live session.
func (m *Manager) Query(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := m.Get(ctx, w, r)
	if errors.Is(err, ErrUnauthenticated) {
		return nil, nil
	}
	return s, err
}

// IsAuthenticated reports whether r carries a live session.
func (m *Manager) IsAuthenticated(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	s, err := m.Query(ctx, w, r)
	return err == nil && s != nil
}

// Destroy deletes the session referenced by r, if any, and clears the cookie.
// The cookie is cleared even when the server-side delete fails.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer m.clearCookie(w, m.cfg.CookieName)

	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	id, _ := m.signer.sessionID(cookie.Value)
	if id == uuid.Nil {
		return nil
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}

// DestroyAllForUser deletes every session belonging to userID.
func (m *Manager) DestroyAllForUser(ctx context.Context, userID uuid.UUID) error {
	n, err := m.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("destroying user sessions: %w", err)
	}
	slog.Debug("destroyed user sessions", "userId", userID, "count", n)
	return nil
}

// ExpiredSessionUser returns the user whose session most recently expired
// on this client, as remembered by the expired-session cookie.
func (m *Manager) ExpiredSessionUser(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(m.cfg.ExpiredCookieName)
	if err != nil || cookie.Value == "" {
		return uuid.Nil, false
	}
	userID, err := m.signer.expiredSessionUser(cookie.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// PurgeExpired deletes expired session rows and returns how many were removed.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purging expired sessions: %w", err)
	}
	return n, nil
}

// StartPurge runs PurgeExpired every interval until ctx is cancelled.
func (m *Manager) StartPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				slog.Error("purging expired sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged expired sessions", "count", n)
			}
		}
	}
}

// expire removes an expired session and leaves a cookie remembering its user.
func (m *Manager) expire(ctx context.Context, w http.ResponseWriter, s *Session, now time.Time) {
	if err := m.repo.Delete(ctx, s.ID); err != nil {
		slog.Warn("deleting expired session", "sessionId", s.ID, "error", err)
	}
	m.clearCookie(w, m.cfg.CookieName)

	expiresAt := now.Add(m.cfg.TTL)
	token, err := m.signer.expiredSessionToken(s.UserID, now, expiresAt)
	if err != nil {
		slog.Warn("signing expired session cookie", "error", err)
		return
	}
	http.SetCookie(w, m.cookie(m.cfg.ExpiredCookieName, token, expiresAt, now))
}

func (m *Manager) setSessionCookie(w http.ResponseWriter, s *Session, now time.Time) error {
	token, err := m.signer.sessionToken(s.ID, now, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("issuing session token: %w", err)
	}
	http.SetCookie(w, m.cookie(m.cfg.CookieName, token, s.ExpiresAt, now))
	return nil
}

func (m *Manager) cookie(name, value string, expiresAt, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.cfg.CookieDomain,
		Expires:  expiresAt,
		MaxAge:   int(expiresAt.Sub(now).Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   m.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
