package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT UNIQUE NOT NULL,
	balance_mg INTEGER NOT NULL DEFAULT 0 CHECK (balance_mg >= 0)
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	txid      TEXT UNIQUE NOT NULL,
	ts        TEXT NOT NULL,
	type      TEXT NOT NULL CHECK (type IN ('ISSUANCE', 'TRANSFER')),
	from_id   TEXT,
	to_id     TEXT NOT NULL,
	amount_mg INTEGER NOT NULL CHECK (amount_mg > 0),
	memo      TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore persists the ledger in a SQLite database, one SQL transaction per commit.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and applies the schema.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database and applies the schema.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	// the engine serializes writers; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadState(ctx context.Context) (*State, error) {
	state := &State{Accounts: []Account{}, Transactions: []Transaction{}}

	rows, err := s.db.QueryContext(ctx, `SELECT id, balance_mg FROM ledger_accounts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.BalanceMg); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		state.Accounts = append(state.Accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	txRows, err := s.db.QueryContext(ctx, `
		SELECT txid, ts, type, from_id, to_id, amount_mg, memo
		FROM ledger_transactions
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer txRows.Close()

	for txRows.Next() {
		var (
			tx     Transaction
			ts     string
			txType string
			from   sql.NullString
		)
		if err := txRows.Scan(&tx.TxID, &ts, &txType, &from, &tx.To, &tx.AmountMg, &tx.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("transaction %s has invalid timestamp %q: %w", tx.TxID, ts, err)
		}
		tx.Type = TxType(txType)
		tx.From = from.String
		state.Transactions = append(state.Transactions, tx)
	}
	if err := txRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return state, nil
}

func (s *SQLiteStore) CommitState(ctx context.Context, c Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range c.Accounts {
		res, err := tx.ExecContext(ctx, `UPDATE ledger_accounts SET balance_mg = ? WHERE id = ?`, a.BalanceMg, a.ID)
		if err != nil {
			return fmt.Errorf("failed to update balance of %s: %w", a.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update balance of %s: %w", a.ID, err)
		}
		if n != 1 {
			return fmt.Errorf("commit references unknown account %s", a.ID)
		}
	}

	if t := c.Transaction; t != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (txid, ts, type, from_id, to_id, amount_mg, memo)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, t.TxID, t.Timestamp.UTC().Format(time.RFC3339Nano), string(t.Type), nullString(t.From), t.To, t.AmountMg, t.Memo)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", t.TxID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ProvisionAccounts(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO ledger_accounts (id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("failed to insert account %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

var _ Store = (*SQLiteStore)(nil)
