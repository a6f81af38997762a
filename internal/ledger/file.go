package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the whole ledger in one JSON document
// ({"accounts": [...], "transactions": [...]}). Each commit rewrites the file
// through a synced temporary file and an atomic rename, so a crash leaves
// either the previous or the new document on disk.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state *State
}

// OpenFileStore opens path, creating an empty ledger document when it does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("ledger file path is required")
	}

	fs := &FileStore{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		fs.state = &State{Accounts: []Account{}, Transactions: []Transaction{}}
		if err := fs.write(fs.state); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	default:
		var s State
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse ledger file %s: %w", path, err)
		}
		if s.Accounts == nil {
			s.Accounts = []Account{}
		}
		if s.Transactions == nil {
			s.Transactions = []Transaction{}
		}
		fs.state = &s
	}
	return fs, nil
}

func (f *FileStore) LoadState(ctx context.Context) (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneState(f.state), nil
}

func (f *FileStore) CommitState(ctx context.Context, c Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := cloneState(f.state)
	if err := applyCommit(next, c); err != nil {
		return err
	}
	if err := f.write(next); err != nil {
		return err
	}
	f.state = next
	return nil
}

func (f *FileStore) ProvisionAccounts(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := cloneState(f.state)
	provisionInto(next, ids)
	if err := f.write(next); err != nil {
		return err
	}
	f.state = next
	return nil
}

func (f *FileStore) write(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
