package credential_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/parley/internal/credential"
	"github.com/daap14/parley/internal/database/dbtest"
	"github.com/daap14/parley/internal/user"
)

func setupCredentialRepo(t *testing.T) (credential.Repository, *pgxpool.Pool) {
	t.Helper()
	pool := dbtest.Open(t)
	return credential.NewRepository(pool), pool
}

func createUser(t *testing.T, pool *pgxpool.Pool, email string) uuid.UUID {
	t.Helper()
	u := &user.User{Email: email}
	require.NoError(t, user.NewRepository(pool).Create(context.Background(), u))
	return u.ID
}

func TestCreateAndFind(t *testing.T) {
	repo, pool := setupCredentialRepo(t)
	ctx := context.Background()
	userID := createUser(t, pool, "ada@company.com")

	c := &credential.Credential{UserID: userID, PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, c))
	assert.NotEqual(t, uuid.Nil, c.ID)

	found, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "hash", found.PasswordHash)
	assert.Nil(t, found.ResetToken)
}

func TestCreate_OnePerUser(t *testing.T) {
	repo, pool := setupCredentialRepo(t)
	ctx := context.Background()
	userID := createUser(t, pool, "ada@company.com")

	require.NoError(t, repo.Create(ctx, &credential.Credential{UserID: userID, PasswordHash: "a"}))
	err := repo.Create(ctx, &credential.Credential{UserID: userID, PasswordHash: "b"})

	assert.ErrorIs(t, err, credential.ErrAlreadyExists)
}

func TestFindByUser_NotFound(t *testing.T) {
	repo, _ := setupCredentialRepo(t)

	_, err := repo.FindByUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestResetToken_Lifecycle(t *testing.T) {
	repo, pool := setupCredentialRepo(t)
	ctx := context.Background()
	userID := createUser(t, pool, "ada@company.com")
	require.NoError(t, repo.Create(ctx, &credential.Credential{UserID: userID, PasswordHash: "old"}))

	require.NoError(t, repo.SetResetToken(ctx, userID, "FIRSTTOKEN"))
	require.NoError(t, repo.SetResetToken(ctx, userID, "SECONDTOKEN"))

	_, err := repo.ConsumeResetToken(ctx, "FIRSTTOKEN", "new")
	assert.ErrorIs(t, err, credential.ErrNotFound, "overwritten token must not be accepted")

	owner, err := repo.ConsumeResetToken(ctx, "SECONDTOKEN", "new")
	require.NoError(t, err)
	assert.Equal(t, userID, owner)

	found, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "new", found.PasswordHash)
	assert.Nil(t, found.ResetToken)

	_, err = repo.ConsumeResetToken(ctx, "SECONDTOKEN", "newer")
	assert.ErrorIs(t, err, credential.ErrNotFound, "token is single use")
}

func TestRevokeResetToken(t *testing.T) {
	repo, pool := setupCredentialRepo(t)
	ctx := context.Background()
	userID := createUser(t, pool, "ada@company.com")
	require.NoError(t, repo.Create(ctx, &credential.Credential{UserID: userID, PasswordHash: "old"}))
	require.NoError(t, repo.SetResetToken(ctx, userID, "TOKEN"))

	require.NoError(t, repo.RevokeResetToken(ctx, userID))

	_, err := repo.ConsumeResetToken(ctx, "TOKEN", "new")
	assert.ErrorIs(t, err, credential.ErrNotFound)
	assert.ErrorIs(t, repo.RevokeResetToken(ctx, uuid.New()), credential.ErrNotFound)
}
