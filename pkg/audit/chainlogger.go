package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// GenesisHash is the previous hash of the first entry in a chain.
var GenesisHash = strings.Repeat("0", 64)

// DefaultTailSize bounds the entries kept in memory.
const DefaultTailSize = 1024

// Event is what gets audited: who did what to which resource, and how it ended.
type Event struct {
	Actor         string `json:"actor"`
	Action        string `json:"action"`
	Resource      string `json:"resource,omitempty"`
	Outcome       string `json:"outcome"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// LogEntry represents a single audit log entry
type LogEntry struct {
	Seq          uint64 `json:"seq"`
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// ChainLogger provides a tamper-evident log using hash chaining. Each entry
// commits to its predecessor, so altering or dropping any entry breaks every
// hash after it.
type ChainLogger struct {
	mu           sync.Mutex
	seq          uint64
	previousHash string
	tail         []*LogEntry
	tailSize     int
	sink         *slog.Logger
	now          func() time.Time
}

// Option configures a ChainLogger.
type Option func(*ChainLogger)

// WithSink mirrors every entry to l.
func WithSink(l *slog.Logger) Option {
	return func(c *ChainLogger) { c.sink = l }
}

// WithTailSize sets how many recent entries are retained; n <= 0 keeps the default.
func WithTailSize(n int) Option {
	return func(c *ChainLogger) {
		if n > 0 {
			c.tailSize = n
		}
	}
}

// NewChainLogger creates a new ChainLogger initialized with a zero hash.
func NewChainLogger(opts ...Option) *ChainLogger {
	c := &ChainLogger{
		previousHash: GenesisHash,
		tailSize:     DefaultTailSize,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func entryHash(seq uint64, prev, ts, payload string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", seq, prev, ts, payload)))
	return hex.EncodeToString(hash[:])
}

// Append adds a raw payload to the chain.
func (c *ChainLogger) Append(payload string) *LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	entry := &LogEntry{
		Seq:          c.seq,
		Timestamp:    c.now().Format(time.RFC3339Nano),
		PreviousHash: c.previousHash,
		Payload:      payload,
	}
	entry.Hash = entryHash(entry.Seq, entry.PreviousHash, entry.Timestamp, entry.Payload)
	c.previousHash = entry.Hash

	c.tail = append(c.tail, entry)
	if over := len(c.tail) - c.tailSize; over > 0 {
		c.tail = append(c.tail[:0:0], c.tail[over:]...)
	}

	if c.sink != nil {
		c.sink.Info("audit",
			"seq", entry.Seq,
			"hash", entry.Hash,
			"payload", entry.Payload,
		)
	}

	out := *entry
	return &out
}

// Record appends ev encoded as JSON.
func (c *ChainLogger) Record(ev Event) *LogEntry {
	data, err := json.Marshal(ev)
	if err != nil {
		// Event holds only strings
		panic(fmt.Sprintf("audit: encode event: %v", err))
	}
	return c.Append(string(data))
}

// Recent returns copies of up to n of the latest entries, oldest first.
func (c *ChainLogger) Recent(n int) []*LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > len(c.tail) {
		n = len(c.tail)
	}
	out := make([]*LogEntry, 0, n)
	for _, e := range c.tail[len(c.tail)-n:] {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// Head returns the sequence number and hash of the latest entry.
func (c *ChainLogger) Head() (uint64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq, c.previousHash
}

// Verify checks the retained entries.
func (c *ChainLogger) Verify() error {
	return Verify(c.Recent(0))
}

// VerifyChain checks if a slice of entries forms a valid hash chain.
func VerifyChain(entries []*LogEntry) bool {
	return Verify(entries) == nil
}

// Verify checks that entries form a contiguous hash chain. The first entry is
// trusted to link to whatever preceded it.
func Verify(entries []*LogEntry) error {
	for i, entry := range entries {
		if i > 0 {
			prev := entries[i-1]
			if entry.PreviousHash != prev.Hash {
				return fmt.Errorf("entry %d does not link to entry %d", entry.Seq, prev.Seq)
			}
			if entry.Seq != prev.Seq+1 {
				return fmt.Errorf("entry %d follows entry %d", entry.Seq, prev.Seq)
			}
		}
		if entryHash(entry.Seq, entry.PreviousHash, entry.Timestamp, entry.Payload) != entry.Hash {
			return fmt.Errorf("entry %d hash mismatch", entry.Seq)
		}
	}
	return nil
}
