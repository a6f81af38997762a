package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Store is the durable persistence medium behind the engine.
//
// CommitState must apply every account balance and the transaction in c
// atomically: either all of it is durable when it returns nil, or none of it is.
type Store interface {
	LoadState(ctx context.Context) (*State, error)
	CommitState(ctx context.Context, c Commit) error
	ProvisionAccounts(ctx context.Context, ids []string) error
	Close() error
}

// Store drivers accepted by OpenStore.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLevelDB  = "leveldb"
)

// StoreConfig selects and locates a Store.
type StoreConfig struct {
	Driver string
	// Path is the file, sqlite database or leveldb directory.
	Path string
	// DatabaseURL is the postgres connection string.
	DatabaseURL string
}

// OpenStore opens the store described by cfg, creating its schema or file when missing.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverMemory:
		return NewMemoryStore(nil), nil
	case DriverFile, "":
		return OpenFileStore(cfg.Path)
	case DriverSQLite:
		return OpenSQLiteStore(ctx, cfg.Path)
	case DriverPostgres:
		return OpenPostgresStore(ctx, cfg.DatabaseURL)
	case DriverLevelDB:
		return OpenLevelDBStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// cloneState returns a deep copy of s.
func cloneState(s *State) *State {
	out := &State{
		Accounts:     make([]Account, len(s.Accounts)),
		Transactions: make([]Transaction, len(s.Transactions)),
	}
	copy(out.Accounts, s.Accounts)
	copy(out.Transactions, s.Transactions)
	return out
}

// applyCommit applies c to s in place. It fails without modifying s when c
// names an unknown account or a duplicate txid.
func applyCommit(s *State, c Commit) error {
	pos := make(map[string]int, len(s.Accounts))
	for i, a := range s.Accounts {
		pos[a.ID] = i
	}
	for _, a := range c.Accounts {
		if _, ok := pos[a.ID]; !ok {
			return fmt.Errorf("commit references unknown account %s", a.ID)
		}
	}
	if c.Transaction != nil {
		for _, tx := range s.Transactions {
			if tx.TxID == c.Transaction.TxID {
				return fmt.Errorf("duplicate txid %s", tx.TxID)
			}
		}
	}

	for _, a := range c.Accounts {
		s.Accounts[pos[a.ID]].BalanceMg = a.BalanceMg
	}
	if c.Transaction != nil {
		s.Transactions = append(s.Transactions, *c.Transaction)
	}
	return nil
}

// provisionInto adds every unknown id in ids to s with a zero balance.
func provisionInto(s *State, ids []string) {
	seen := make(map[string]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		seen[a.ID] = true
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		s.Accounts = append(s.Accounts, Account{ID: id})
	}
}
