package gravatar_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/parley/internal/gravatar"
	"github.com/daap14/parley/internal/user"
)

type mockFetcher struct {
	profileFn func(ctx context.Context, email string) (*gravatar.Profile, error)
}

func (m *mockFetcher) Profile(ctx context.Context, email string) (*gravatar.Profile, error) {
	return m.profileFn(ctx, email)
}

type mockUsers struct {
	users   map[uuid.UUID]*user.User
	updated map[uuid.UUID]string
}

func newMockUsers(users ...*user.User) *mockUsers {
	m := &mockUsers{users: map[uuid.UUID]*user.User{}, updated: map[uuid.UUID]string{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUsers) UpdateDisplayName(_ context.Context, id uuid.UUID, name string) error {
	m.updated[id] = name
	return nil
}

func profile(name string) *mockFetcher {
	return &mockFetcher{profileFn: func(context.Context, string) (*gravatar.Profile, error) {
		return &gravatar.Profile{DisplayName: name}, nil
	}}
}

func TestSync_SetsDisplayName(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "ada@company.com"}
	users := newMockUsers(u)

	err := gravatar.NewSyncer(profile("<em>Ada</em> Lovelace"), users).Sync(context.Background(), u.ID, u.Email)

	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", users.updated[u.ID])
}

func TestSync_KeepsExistingName(t *testing.T) {
	name := "Countess"
	u := &user.User{ID: uuid.New(), Email: "ada@company.com", DisplayName: &name}
	users := newMockUsers(u)

	require.NoError(t, gravatar.NewSyncer(profile("Ada"), users).Sync(context.Background(), u.ID, u.Email))
	assert.Empty(t, users.updated)
}

func TestSync_NoProfile(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "ada@company.com"}
	users := newMockUsers(u)
	fetcher := &mockFetcher{profileFn: func(context.Context, string) (*gravatar.Profile, error) {
		return nil, gravatar.ErrProfileNotFound
	}}

	require.NoError(t, gravatar.NewSyncer(fetcher, users).Sync(context.Background(), u.ID, u.Email))
	assert.Empty(t, users.updated)
}

func TestSync_EmptyProfileName(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "ada@company.com"}
	users := newMockUsers(u)

	require.NoError(t, gravatar.NewSyncer(profile("   "), users).Sync(context.Background(), u.ID, u.Email))
	assert.Empty(t, users.updated)
}

func TestSync_FetchFailureIsRetryable(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "ada@company.com"}
	fetcher := &mockFetcher{profileFn: func(context.Context, string) (*gravatar.Profile, error) {
		return nil, errors.New("timeout")
	}}

	task := gravatar.NewSyncer(fetcher, newMockUsers(u)).Task(u.ID, u.Email)

	assert.Equal(t, "gravatar_sync", task.Name)
	assert.Error(t, task.Run(context.Background()))
}
