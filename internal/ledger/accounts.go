package ledger

import (
	"fmt"
	"sync"
)

// AccountStore holds the current balance of every account in insertion order.
type AccountStore struct {
	mu       sync.Mutex
	order    []string
	balances map[string]int64
}

// NewAccountStore creates a store containing accounts with their given balances.
func NewAccountStore(accounts []Account) *AccountStore {
	s := &AccountStore{balances: make(map[string]int64, len(accounts))}
	for _, a := range accounts {
		s.add(a.ID, a.BalanceMg)
	}
	return s
}

func (s *AccountStore) add(id string, balance int64) bool {
	if _, ok := s.balances[id]; ok {
		return false
	}
	s.order = append(s.order, id)
	s.balances[id] = balance
	return true
}

// Add inserts a new account; it reports false if id already exists.
func (s *AccountStore) Add(id string, balance int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(id, balance)
}

// Get returns the account with the given id.
func (s *AccountStore) Get(id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return Account{ID: id, BalanceMg: bal}, nil
}

// Credit increases the balance of id by amount. amount must be positive.
func (s *AccountStore) Credit(id string, amount int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	bal += amount
	s.balances[id] = bal
	return Account{ID: id, BalanceMg: bal}, nil
}

// Debit decreases the balance of id by amount, leaving it unchanged when the
// balance is lower than amount.
func (s *AccountStore) Debit(id string, amount int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if bal < amount {
		return Account{}, fmt.Errorf("%w: account %s has %d mg, need %d mg", ErrInsufficientFunds, id, bal, amount)
	}
	bal -= amount
	s.balances[id] = bal
	return Account{ID: id, BalanceMg: bal}, nil
}

// Set overwrites the balance of an existing account. Used only by reconciliation.
func (s *AccountStore) Set(id string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	s.balances[id] = balance
	return nil
}

// List returns a snapshot of every account in insertion order.
func (s *AccountStore) List() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Account{ID: id, BalanceMg: s.balances[id]})
	}
	return out
}

// Len returns the number of accounts.
func (s *AccountStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
