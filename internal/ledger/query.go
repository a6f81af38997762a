package ledger

import "fmt"

const (
	// DefaultRecentLimit is used by RecentTransactions when no limit is given.
	DefaultRecentLimit = 200
	// MaxRecentLimit bounds one RecentTransactions call.
	MaxRecentLimit = 1000
)

// Balance returns the current balance of an account.
func (e *Engine) Balance(id string) (int64, error) {
	if id == "" {
		return 0, fmt.Errorf("%w: account id is required", ErrInvalidParams)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	a, err := e.accounts.Get(id)
	if err != nil {
		return 0, err
	}
	return a.BalanceMg, nil
}

// Accounts returns a snapshot of every account in provisioning order.
func (e *Engine) Accounts() []Account {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accounts.List()
}

// RecentTransactions returns up to limit of the most recent transactions,
// oldest first. A non-positive limit means DefaultRecentLimit; limits above
// MaxRecentLimit are clamped.
func (e *Engine) RecentTransactions(limit int) []Transaction {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Tail(limit)
}

// Transactions returns the full log in commit order.
func (e *Engine) Transactions() []Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.All()
}

// Transaction looks up a committed transaction by txid.
func (e *Engine) Transaction(txid string) (Transaction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tx, ok := e.log.Get(txid)
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid)
	}
	return tx, nil
}

// Snapshot returns a consistent copy of the whole ledger state.
func (e *Engine) Snapshot() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &State{
		Accounts:     e.accounts.List(),
		Transactions: e.log.All(),
	}
}

// Supply returns the total amount issued so far.
func (e *Engine) Supply() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.supply
}
