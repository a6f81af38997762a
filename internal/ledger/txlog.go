package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TransactionLog is the append-only, ordered sequence of committed transactions.
type TransactionLog struct {
	mu      sync.RWMutex
	records []Transaction
	index   map[string]int
	now     func() time.Time
	newID   func() string
}

// NewTransactionLog creates a log holding records, which must already be in commit order.
func NewTransactionLog(records []Transaction) *TransactionLog {
	l := &TransactionLog{
		records: make([]Transaction, 0, len(records)),
		index:   make(map[string]int, len(records)),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:   uuid.NewString,
	}
	for _, r := range records {
		l.add(r)
	}
	return l
}

func (l *TransactionLog) add(tx Transaction) {
	l.index[tx.TxID] = len(l.records)
	l.records = append(l.records, tx)
}

// Stamp assigns a fresh txid and a timestamp no earlier than the last record
// without appending rec to the log.
func (l *TransactionLog) Stamp(rec Transaction) Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ts := l.now()
	if n := len(l.records); n > 0 && ts.Before(l.records[n-1].Timestamp) {
		ts = l.records[n-1].Timestamp
	}

	id := l.newID()
	for _, dup := l.index[id]; dup; _, dup = l.index[id] {
		id = l.newID()
	}

	rec.TxID = id
	rec.Timestamp = ts
	return rec
}

// Append stamps rec, adds it to the end of the log and returns the stored record.
func (l *TransactionLog) Append(rec Transaction) Transaction {
	tx := l.Stamp(rec)
	l.appendStamped(tx)
	return tx
}

// appendStamped adds a record previously returned by Stamp.
func (l *TransactionLog) appendStamped(tx Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(tx)
}

// Tail returns the last n records in commit order, or all of them if fewer exist.
func (l *TransactionLog) Tail(n int) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	start := len(l.records) - n
	if start < 0 {
		start = 0
	}
	out := make([]Transaction, len(l.records)-start)
	copy(out, l.records[start:])
	return out
}

// All returns every record in commit order.
func (l *TransactionLog) All() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Transaction, len(l.records))
	copy(out, l.records)
	return out
}

// Get returns the record with the given txid.
func (l *TransactionLog) Get(txid string) (Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[txid]
	if !ok {
		return Transaction{}, false
	}
	return l.records[i], true
}

// Len returns the number of committed records.
func (l *TransactionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
