package ledger

import (
	"context"
	"sync"
)

// MemoryStore is a non-durable Store, used for tests and throwaway ledgers.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates a store seeded with a copy of initial, which may be nil.
func NewMemoryStore(initial *State) *MemoryStore {
	if initial == nil {
		initial = &State{}
	}
	return &MemoryStore{state: cloneState(initial)}
}

func (m *MemoryStore) LoadState(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state), nil
}

func (m *MemoryStore) CommitState(ctx context.Context, c Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return applyCommit(m.state, c)
}

func (m *MemoryStore) ProvisionAccounts(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	provisionInto(m.state, ids)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
