package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	balance_mg BIGINT NOT NULL DEFAULT 0 CHECK (balance_mg >= 0)
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	seq       BIGSERIAL PRIMARY KEY,
	txid      TEXT UNIQUE NOT NULL,
	ts        TIMESTAMPTZ NOT NULL,
	type      TEXT NOT NULL CHECK (type IN ('ISSUANCE', 'TRANSFER')),
	from_id   TEXT REFERENCES ledger_accounts (id),
	to_id     TEXT NOT NULL REFERENCES ledger_accounts (id),
	amount_mg BIGINT NOT NULL CHECK (amount_mg > 0),
	memo      TEXT NOT NULL DEFAULT ''
);

CREATE OR REPLACE FUNCTION ledger_transactions_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'ledger_transactions is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS ledger_transactions_append_only ON ledger_transactions;
CREATE TRIGGER ledger_transactions_append_only
	BEFORE UPDATE OR DELETE ON ledger_transactions
	FOR EACH ROW EXECUTE FUNCTION ledger_transactions_append_only();
`

// serializationFailure is the SQLSTATE postgres returns when a SERIALIZABLE
// transaction must be retried.
const serializationFailure = "40001"

// errCommitOutcomeUnknown marks a COMMIT whose reply never arrived; the
// transaction may or may not be durable.
var errCommitOutcomeUnknown = errors.New("commit outcome unknown")

// PostgresStore persists the ledger in PostgreSQL. Every commit runs in a
// SERIALIZABLE transaction and is retried on serialization failures.
type PostgresStore struct {
	Pool *pgxpool.Pool

	maxRetries   int
	queryTimeout time.Duration
}

// OpenPostgresStore connects to databaseURL, verifies the connection and migrates the schema.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool. The schema must already exist; see Migrate.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		Pool:         pool,
		maxRetries:   3,
		queryTimeout: 5 * time.Second,
	}
}

// Migrate creates the ledger tables if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.Pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) LoadState(ctx context.Context) (*State, error) {
	state := &State{Accounts: []Account{}, Transactions: []Transaction{}}

	rows, err := p.Pool.Query(ctx, `SELECT id, balance_mg FROM ledger_accounts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.BalanceMg); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		state.Accounts = append(state.Accounts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	rows, err = p.Pool.Query(ctx, `
		SELECT txid, ts, type, from_id, to_id, amount_mg, memo
		FROM ledger_transactions
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tx     Transaction
			txType string
			from   *string
		)
		if err := rows.Scan(&tx.TxID, &tx.Timestamp, &txType, &from, &tx.To, &tx.AmountMg, &tx.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Timestamp = tx.Timestamp.UTC()
		tx.Type = TxType(txType)
		if from != nil {
			tx.From = *from
		}
		state.Transactions = append(state.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return state, nil
}

func (p *PostgresStore) CommitState(ctx context.Context, c Commit) error {
	err := p.withRetry(ctx, "commit", func(queryCtx context.Context, tx pgx.Tx) error {
		for _, a := range c.Accounts {
			tag, err := tx.Exec(queryCtx, `UPDATE ledger_accounts SET balance_mg = $1 WHERE id = $2`, a.BalanceMg, a.ID)
			if err != nil {
				return fmt.Errorf("failed to update balance of %s: %w", a.ID, err)
			}
			if tag.RowsAffected() != 1 {
				return fmt.Errorf("commit references unknown account %s", a.ID)
			}
		}

		if t := c.Transaction; t != nil {
			var from *string
			if t.From != "" {
				from = &t.From
			}
			_, err := tx.Exec(queryCtx, `
				INSERT INTO ledger_transactions (txid, ts, type, from_id, to_id, amount_mg, memo)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, t.TxID, t.Timestamp.UTC(), string(t.Type), from, t.To, t.AmountMg, t.Memo)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", t.TxID, err)
			}
		}
		return nil
	})
	if c.Transaction == nil {
		return err
	}
	return resolveCommitOutcome(ctx, err, func(ctx context.Context) (bool, error) {
		return p.transactionExists(ctx, c.Transaction.TxID)
	})
}

// resolveCommitOutcome settles a commit whose reply was lost by asking whether
// its transaction row exists. The row and the balances are written in one
// transaction, so a present row means the whole commit is durable.
func resolveCommitOutcome(ctx context.Context, err error, exists func(context.Context) (bool, error)) error {
	if !errors.Is(err, errCommitOutcomeUnknown) {
		return err
	}
	found, lookupErr := exists(ctx)
	if lookupErr != nil {
		return fmt.Errorf("%w (lookup failed: %v)", err, lookupErr)
	}
	if found {
		return nil
	}
	return err
}

func (p *PostgresStore) transactionExists(ctx context.Context, txid string) (bool, error) {
	queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.queryTimeout)
	defer cancel()

	var found bool
	err := p.Pool.QueryRow(queryCtx, `SELECT EXISTS (SELECT 1 FROM ledger_transactions WHERE txid = $1)`, txid).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to look up transaction %s: %w", txid, err)
	}
	return found, nil
}

func (p *PostgresStore) ProvisionAccounts(ctx context.Context, ids []string) error {
	return p.withRetry(ctx, "provision", func(queryCtx context.Context, tx pgx.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec(queryCtx, `INSERT INTO ledger_accounts (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
				return fmt.Errorf("failed to insert account %s: %w", id, err)
			}
		}
		return nil
	})
}

// withRetry runs fn inside a SERIALIZABLE transaction, retrying the whole
// transaction when postgres reports a serialization failure.
func (p *PostgresStore) withRetry(ctx context.Context, op string, fn func(context.Context, pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		err = p.runSerializable(ctx, fn)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != serializationFailure {
			return err
		}
		if attempt == p.maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to %s after %d retries due to serialization failure: %w", op, p.maxRetries, err)
}

func (p *PostgresStore) runSerializable(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	queryCtx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	conn, err := p.Pool.Acquire(queryCtx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(queryCtx)

	if err := fn(queryCtx, tx); err != nil {
		return err
	}
	if err := tx.Commit(queryCtx); err != nil {
		// a server error reply means the transaction was rolled back
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return fmt.Errorf("%w: %w", errCommitOutcomeUnknown, err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.Pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
