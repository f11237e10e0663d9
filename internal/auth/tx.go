package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daap14/parley/internal/credential"
	"github.com/daap14/parley/internal/database"
	"github.com/daap14/parley/internal/team"
	"github.com/daap14/parley/internal/user"
)

// Repositories bundles the stores the orchestrators work with.
type Repositories struct {
	Users       user.Repository
	Credentials credential.Repository
	Teams       team.Repository
	Memberships team.MembershipRepository
}

// NewRepositories binds every Postgres repository to db.
func NewRepositories(db database.DBTX) Repositories {
	return Repositories{
		Users:       user.NewRepository(db),
		Credentials: credential.NewRepository(db),
		Teams:       team.NewRepository(db),
		Memberships: team.NewMembershipRepository(db),
	}
}

// TxRunner runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repos Repositories) error) error
}

// PostgresTxRunner implements TxRunner on a connection pool.
type PostgresTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a TxRunner backed by pool.
func NewTxRunner(pool *pgxpool.Pool) *PostgresTxRunner {
	return &PostgresTxRunner{pool: pool}
}

// InTx implements TxRunner.
func (r *PostgresTxRunner) InTx(ctx context.Context, fn func(repos Repositories) error) error {
	return database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		return fn(NewRepositories(tx))
	})
}
