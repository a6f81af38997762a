package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// key prefixes; the remaining 8 bytes of every record key are a big endian sequence number
const (
	prefixAccount     = 'A'
	prefixTransaction = 'T'
)

const levelDBVersion = 1

var levelDBVersionKey = []byte("V")

// LevelDBStore keeps accounts and transactions as individual records in a
// LevelDB directory. A commit is a single synced write batch.
type LevelDBStore struct {
	mu       sync.Mutex
	db       *leveldb.DB
	accounts map[string][]byte // account id -> record key
	nextAcct uint64
	nextTx   uint64
}

// OpenLevelDBStore opens (or creates) the database directory at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	if path == "" {
		return nil, errors.New("leveldb path is required")
	}

	db, err := leveldb.OpenFile(path, &ldb_opt.Options{ErrorIfExist: false})
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	s, err := newLevelDBStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newLevelDBStore(db *leveldb.DB) (*LevelDBStore, error) {
	version, err := db.Get(levelDBVersionKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		v := make([]byte, 4)
		binary.BigEndian.PutUint32(v, levelDBVersion)
		if err := db.Put(levelDBVersionKey, v, &ldb_opt.WriteOptions{Sync: true}); err != nil {
			return nil, fmt.Errorf("failed to write leveldb version: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read leveldb version: %w", err)
	case len(version) != 4:
		return nil, fmt.Errorf("incompatible database version length: expected: %d  actual: %d", 4, len(version))
	case binary.BigEndian.Uint32(version) != levelDBVersion:
		return nil, fmt.Errorf("unsupported leveldb version %d", binary.BigEndian.Uint32(version))
	}

	s := &LevelDBStore{db: db, accounts: make(map[string][]byte)}

	iter := db.NewIterator(ldb_util.BytesPrefix([]byte{prefixAccount}), nil)
	for iter.Next() {
		var a Account
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			iter.Release()
			return nil, fmt.Errorf("failed to decode account record: %w", err)
		}
		key := append([]byte(nil), iter.Key()...)
		s.accounts[a.ID] = key
		s.nextAcct = recordSeq(key) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}

	iter = db.NewIterator(ldb_util.BytesPrefix([]byte{prefixTransaction}), nil)
	if iter.Last() {
		s.nextTx = recordSeq(iter.Key()) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}

	return s, nil
}

func recordKey(prefix byte, seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

func recordSeq(key []byte) uint64 {
	if len(key) != 9 {
		return 0
	}
	return binary.BigEndian.Uint64(key[1:])
}

func (s *LevelDBStore) LoadState(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot leveldb: %w", err)
	}
	defer snap.Release()

	state := &State{Accounts: []Account{}, Transactions: []Transaction{}}

	iter := snap.NewIterator(ldb_util.BytesPrefix([]byte{prefixAccount}), nil)
	for iter.Next() {
		var a Account
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			iter.Release()
			return nil, fmt.Errorf("failed to decode account record: %w", err)
		}
		state.Accounts = append(state.Accounts, a)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	iter = snap.NewIterator(ldb_util.BytesPrefix([]byte{prefixTransaction}), nil)
	for iter.Next() {
		var tx Transaction
		if err := json.Unmarshal(iter.Value(), &tx); err != nil {
			iter.Release()
			return nil, fmt.Errorf("failed to decode transaction record: %w", err)
		}
		state.Transactions = append(state.Transactions, tx)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return state, nil
}

func (s *LevelDBStore) CommitState(ctx context.Context, c Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	for _, a := range c.Accounts {
		key, ok := s.accounts[a.ID]
		if !ok {
			return fmt.Errorf("commit references unknown account %s", a.ID)
		}
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode account %s: %w", a.ID, err)
		}
		batch.Put(key, value)
	}

	if c.Transaction != nil {
		value, err := json.Marshal(c.Transaction)
		if err != nil {
			return fmt.Errorf("failed to encode transaction %s: %w", c.Transaction.TxID, err)
		}
		batch.Put(recordKey(prefixTransaction, s.nextTx), value)
	}

	if err := s.db.Write(batch, &ldb_opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	if c.Transaction != nil {
		s.nextTx++
	}
	return nil
}

func (s *LevelDBStore) ProvisionAccounts(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	added := make(map[string][]byte)
	seq := s.nextAcct
	for _, id := range ids {
		if _, ok := s.accounts[id]; ok {
			continue
		}
		if _, ok := added[id]; ok {
			continue
		}
		value, err := json.Marshal(Account{ID: id})
		if err != nil {
			return fmt.Errorf("failed to encode account %s: %w", id, err)
		}
		key := recordKey(prefixAccount, seq)
		seq++
		batch.Put(key, value)
		added[id] = key
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := s.db.Write(batch, &ldb_opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	for id, key := range added {
		s.accounts[id] = key
	}
	s.nextAcct = seq
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

var _ Store = (*LevelDBStore)(nil)
