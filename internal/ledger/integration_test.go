package ledger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// IntegrationTestPostgres provides integration testing with real PostgreSQL.
// Tests are skipped unless LEDGER_TEST_DATABASE_URL is set.
type IntegrationTestPostgres struct {
	pool *pgxpool.Pool
	ctx  context.Context
}

func newIntegrationTestPostgres(t testing.TB) *IntegrationTestPostgres {
	t.Helper()

	dbURL := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	itp := &IntegrationTestPostgres{pool: pool, ctx: ctx}
	require.NoError(t, itp.TeardownDatabase())
	t.Cleanup(func() {
		itp.TeardownDatabase()
		pool.Close()
	})
	return itp
}

// TeardownDatabase drops the ledger tables.
func (itp *IntegrationTestPostgres) TeardownDatabase() error {
	_, err := itp.pool.Exec(itp.ctx, `
		DROP TABLE IF EXISTS ledger_transactions;
		DROP TABLE IF EXISTS ledger_accounts;
		DROP FUNCTION IF EXISTS ledger_transactions_append_only();
	`)
	return err
}

func (itp *IntegrationTestPostgres) store(t testing.TB) *PostgresStore {
	t.Helper()
	s := NewPostgresStore(itp.pool)
	require.NoError(t, s.Migrate(itp.ctx))
	return s
}

func TestPostgresStore(t *testing.T) {
	itp := newIntegrationTestPostgres(t)
	s := itp.store(t)

	exerciseStore(t, s)

	// migrations are idempotent
	require.NoError(t, s.Migrate(itp.ctx))
}

func TestPostgresStore_LogIsAppendOnly(t *testing.T) {
	itp := newIntegrationTestPostgres(t)
	s := itp.store(t)
	exerciseStore(t, s)

	_, err := itp.pool.Exec(itp.ctx, `UPDATE ledger_transactions SET amount_mg = 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = itp.pool.Exec(itp.ctx, `DELETE FROM ledger_transactions`)
	require.Error(t, err)
}

func TestPostgresStore_RejectsNegativeBalance(t *testing.T) {
	itp := newIntegrationTestPostgres(t)
	s := itp.store(t)
	require.NoError(t, s.ProvisionAccounts(itp.ctx, []string{"A"}))

	err := s.CommitState(itp.ctx, Commit{Accounts: []Account{{ID: "A", BalanceMg: -1}}})
	require.Error(t, err)
}

func TestFullLedgerWorkflow(t *testing.T) {
	itp := newIntegrationTestPostgres(t)
	ctx := itp.ctx

	e := newEngineOn(t, itp.store(t), "A", "B")
	_, err := e.Issue(ctx, IssueRequest{To: "A", AmountMg: 100, Memo: "seed"})
	require.NoError(t, err)

	const concurrent = 20
	var wg sync.WaitGroup
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Transfer(ctx, TransferRequest{From: "A", To: "B", AmountMg: 5, Memo: fmt.Sprintf("t%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	requireBalance(t, e, "A", 0)
	requireBalance(t, e, "B", 100)

	reopened, err := Open(ctx, NewPostgresStore(itp.pool), WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.Equal(t, e.Snapshot(), reopened.Snapshot())

	ok, failed := AllValid(NewValidator().ComprehensiveValidation(reopened.Snapshot()))
	assert.True(t, ok, "%d validation checks failed", failed)
}

func BenchmarkPostgresTransfer(b *testing.B) {
	itp := newIntegrationTestPostgres(b)
	ctx := itp.ctx

	e, err := Open(ctx, itp.store(b), WithLogger(discardLogger()))
	require.NoError(b, err)
	_, err = e.Provision(ctx, []string{"A", "B"})
	require.NoError(b, err)
	_, err = e.Issue(ctx, IssueRequest{To: "A", AmountMg: int64(b.N) + 1})
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Transfer(ctx, TransferRequest{From: "A", To: "B", AmountMg: 1}); err != nil {
			b.Fatalf("transfer: %v", err)
		}
	}
}
