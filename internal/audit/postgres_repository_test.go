package audit_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/parley/internal/audit"
	"github.com/daap14/parley/internal/database/dbtest"
	"github.com/daap14/parley/internal/user"
)

func TestPostgresRepository_InsertAndList(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	repo := audit.NewRepository(pool)

	u := &user.User{Email: "ada@company.com"}
	require.NoError(t, user.NewRepository(pool).Create(ctx, u))

	e := &audit.Entry{
		UserID:    &u.ID,
		Action:    audit.ActionAcceptsMembership,
		Auditable: audit.Ref("membership", uuid.New()),
		Payload:   map[string]any{"role": "owner"},
	}
	require.NoError(t, repo.Insert(ctx, e))
	require.NoError(t, repo.Insert(ctx, &audit.Entry{UserID: &u.ID, Action: audit.ActionUserLogin}))
	assert.NotEqual(t, uuid.Nil, e.ID)

	entries, err := repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "owner", entries[0].Payload["role"])
	assert.Empty(t, entries[1].Payload)
}
