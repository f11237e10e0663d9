package auth_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daap14/parley/internal/audit"
	"github.com/daap14/parley/internal/auth"
	"github.com/daap14/parley/internal/credential"
	"github.com/daap14/parley/internal/team"
	"github.com/daap14/parley/internal/user"
	"github.com/daap14/parley/internal/worker"
)

// memStore is an in-memory stand-in for the Postgres tables. Transactions
// are serialized and InTx restores the previous state when fn fails.
type memStore struct {
	txMu        sync.Mutex
	mu          sync.Mutex
	users       map[uuid.UUID]user.User
	credentials map[uuid.UUID]credential.Credential // keyed by user ID
	teams       map[uuid.UUID]team.Team
	memberships []team.Membership

	failMembership error
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[uuid.UUID]user.User{},
		credentials: map[uuid.UUID]credential.Credential{},
		teams:       map[uuid.UUID]team.Team{},
	}
}

func (s *memStore) repos() auth.Repositories {
	return auth.Repositories{
		Users:       &memUsers{s},
		Credentials: &memCredentials{s},
		Teams:       &memTeams{s},
		Memberships: &memMemberships{s},
	}
}

func (s *memStore) InTx(_ context.Context, fn func(repos auth.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	users := maps.Clone(s.users)
	creds := maps.Clone(s.credentials)
	teams := maps.Clone(s.teams)
	memberships := slices.Clone(s.memberships)
	s.mu.Unlock()

	if err := fn(s.repos()); err != nil {
		s.mu.Lock()
		s.users, s.credentials, s.teams, s.memberships = users, creds, teams, memberships
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) counts() (users, credentials, teams, memberships int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), len(s.credentials), len(s.teams), len(s.memberships)
}

func (s *memStore) credentialOf(userID uuid.UUID) credential.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentials[userID]
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUsers) UpdateDisplayName(_ context.Context, id uuid.UUID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.DisplayName = &name
	r.s.users[id] = u
	return nil
}

type memCredentials struct{ s *memStore }

func (r *memCredentials) Create(_ context.Context, c *credential.Credential) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.credentials[c.UserID]; ok {
		return credential.ErrAlreadyExists
	}
	c.ID = uuid.New()
	r.s.credentials[c.UserID] = *c
	return nil
}

func (r *memCredentials) FindByUser(_ context.Context, userID uuid.UUID) (*credential.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credentials[userID]
	if !ok {
		return nil, credential.ErrNotFound
	}
	return &c, nil
}

func (r *memCredentials) SetResetToken(_ context.Context, userID uuid.UUID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credentials[userID]
	if !ok {
		return credential.ErrNotFound
	}
	c.ResetToken = &token
	r.s.credentials[userID] = c
	return nil
}

func (r *memCredentials) RevokeResetToken(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credentials[userID]
	if !ok {
		return credential.ErrNotFound
	}
	c.ResetToken = nil
	r.s.credentials[userID] = c
	return nil
}

func (r *memCredentials) ConsumeResetToken(_ context.Context, token, hash string) (uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for userID, c := range r.s.credentials {
		if c.ResetToken != nil && *c.ResetToken == token {
			c.ResetToken = nil
			c.PasswordHash = hash
			r.s.credentials[userID] = c
			return userID, nil
		}
	}
	return uuid.Nil, credential.ErrNotFound
}

type memTeams struct{ s *memStore }

func (r *memTeams) Create(_ context.Context, t *team.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = uuid.New()
	r.s.teams[t.ID] = *t
	return nil
}

type memMemberships struct{ s *memStore }

func (r *memMemberships) Create(_ context.Context, m *team.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMembership != nil {
		return r.s.failMembership
	}
	m.ID = uuid.New()
	r.s.memberships = append(r.s.memberships, *m)
	return nil
}

func (r *memMemberships) ListByUser(_ context.Context, userID uuid.UUID) ([]team.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []team.Membership{}
	for _, m := range r.s.memberships {
		if m.UserID != userID {
			continue
		}
		t := r.s.teams[m.TeamID]
		m.Team = &t
		out = append(out, m)
	}
	return out, nil
}

// --- Side-channel spies ---

type auditSpy struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *auditSpy) Record(_ context.Context, e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *auditSpy) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type taskSpy struct {
	mu    sync.Mutex
	tasks []worker.Task
	err   error
}

func (t *taskSpy) Submit(task worker.Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.tasks = append(t.tasks, task)
	return nil
}

func (t *taskSpy) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, task.Name)
	}
	return out
}

func (t *taskSpy) requestIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, task.RequestID)
	}
	return out
}

func (t *taskSpy) runAll(ctx context.Context) error {
	t.mu.Lock()
	tasks := slices.Clone(t.tasks)
	t.mu.Unlock()
	var errs []error
	for _, task := range tasks {
		errs = append(errs, task.Run(ctx))
	}
	return errors.Join(errs...)
}

type revokerSpy struct {
	mu      sync.Mutex
	revoked []uuid.UUID
	err     error
}

func (r *revokerSpy) DestroyAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked = append(r.revoked, userID)
	return nil
}

type notifierSpy struct {
	mu   sync.Mutex
	sent map[string]string
}

func (n *notifierSpy) SendRecoveryCode(_ context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = map[string]string{}
	}
	n.sent[to] = code
	return nil
}

type profileSpy struct{}

func (profileSpy) Task(uuid.UUID, string) worker.Task {
	return worker.Task{Name: "gravatar_sync", Run: func(context.Context) error { return nil }}
}

type observerSpy struct {
	mu       sync.Mutex
	outcomes map[string][]error
}

func (o *observerSpy) RecordAuth(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string][]error{}
	}
	o.outcomes[op] = append(o.outcomes[op], err)
}
