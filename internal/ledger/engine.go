package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// CommitObserver is notified after a transaction is durably committed and
// visible. It runs outside the engine lock and cannot fail the operation.
type CommitObserver interface {
	TransactionCommitted(ctx context.Context, tx Transaction)
}

// Engine is the only component that changes balances. Every Issue and Transfer
// runs under a single write lock that spans validation, the durable commit and
// the in-memory apply, so operations are serializable and a failed commit
// leaves no trace.
type Engine struct {
	mu       sync.RWMutex
	store    Store
	accounts *AccountStore
	log      *TransactionLog
	supply   int64

	logger    *slog.Logger
	observers []CommitObserver
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver registers a post-commit observer.
func WithObserver(o CommitObserver) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithClock overrides the clock used for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Open loads the ledger from store, replays the transaction log to regenerate
// balances and persists the replayed balances if the stored ones drifted.
func Open(ctx context.Context, store Store, opts ...Option) (*Engine, error) {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	state, err := store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load state: %w", ErrStorage, err)
	}

	res, err := Replay(state)
	if err != nil {
		return nil, fmt.Errorf("replay transaction log: %w", err)
	}

	if len(res.Drift) > 0 {
		e.logger.Warn("persisted balances disagree with transaction log; reconciling",
			"accounts", len(res.Drift),
			"drift", res.Drift,
		)
		fixed := make([]Account, 0, len(res.Drift))
		for _, d := range res.Drift {
			fixed = append(fixed, Account{ID: d.AccountID, BalanceMg: d.Replayed})
		}
		if err := store.CommitState(ctx, Commit{Accounts: fixed}); err != nil {
			return nil, fmt.Errorf("%w: reconcile balances: %w", ErrStorage, err)
		}
	}

	e.accounts = NewAccountStore(res.Accounts)
	e.log = NewTransactionLog(state.Transactions)
	if e.now != nil {
		e.log.now = e.now
	}
	e.supply = res.Supply

	e.logger.Info("ledger loaded",
		"accounts", e.accounts.Len(),
		"transactions", e.log.Len(),
		"supply_mg", e.supply,
	)
	return e, nil
}

// Issue mints amount_mg into an existing account and records an ISSUANCE.
func (e *Engine) Issue(ctx context.Context, req IssueRequest) (Transaction, error) {
	if err := req.Validate(); err != nil {
		return Transaction{}, err
	}

	tx, err := e.issue(ctx, req)
	if err != nil {
		return Transaction{}, err
	}
	e.notify(ctx, tx)
	return tx, nil
}

func (e *Engine) issue(ctx context.Context, req IssueRequest) (Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	to, err := e.accounts.Get(req.To)
	if err != nil {
		return Transaction{}, err
	}
	if e.supply > math.MaxInt64-req.AmountMg {
		return Transaction{}, fmt.Errorf("%w: issuing %d mg overflows total supply", ErrInvalidParams, req.AmountMg)
	}

	tx := e.log.Stamp(Transaction{
		Type:     TxIssuance,
		To:       req.To,
		AmountMg: req.AmountMg,
		Memo:     req.Memo,
	})
	to.BalanceMg += req.AmountMg

	if err := e.commit(ctx, Commit{Accounts: []Account{to}, Transaction: &tx}); err != nil {
		return Transaction{}, err
	}

	if _, err := e.accounts.Credit(req.To, req.AmountMg); err != nil {
		panic(fmt.Sprintf("ledger: apply committed issuance %s: %v", tx.TxID, err))
	}
	e.log.appendStamped(tx)
	e.supply += req.AmountMg
	return tx, nil
}

// Transfer moves amount_mg between two existing accounts and records a TRANSFER.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (Transaction, error) {
	if err := req.Validate(); err != nil {
		return Transaction{}, err
	}

	tx, err := e.transfer(ctx, req)
	if err != nil {
		return Transaction{}, err
	}
	e.notify(ctx, tx)
	return tx, nil
}

func (e *Engine) transfer(ctx context.Context, req TransferRequest) (Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	from, err := e.accounts.Get(req.From)
	if err != nil {
		return Transaction{}, err
	}
	to, err := e.accounts.Get(req.To)
	if err != nil {
		return Transaction{}, err
	}
	if from.BalanceMg < req.AmountMg {
		return Transaction{}, fmt.Errorf("%w: account %s has %d mg, need %d mg",
			ErrInsufficientFunds, from.ID, from.BalanceMg, req.AmountMg)
	}

	tx := e.log.Stamp(Transaction{
		Type:     TxTransfer,
		From:     req.From,
		To:       req.To,
		AmountMg: req.AmountMg,
		Memo:     req.Memo,
	})
	from.BalanceMg -= req.AmountMg
	to.BalanceMg += req.AmountMg

	if err := e.commit(ctx, Commit{Accounts: []Account{from, to}, Transaction: &tx}); err != nil {
		return Transaction{}, err
	}

	if _, err := e.accounts.Debit(req.From, req.AmountMg); err != nil {
		panic(fmt.Sprintf("ledger: apply committed transfer %s: %v", tx.TxID, err))
	}
	if _, err := e.accounts.Credit(req.To, req.AmountMg); err != nil {
		panic(fmt.Sprintf("ledger: apply committed transfer %s: %v", tx.TxID, err))
	}
	e.log.appendStamped(tx)
	return tx, nil
}

// Provision creates zero-balance accounts for every id not already present and
// returns the ids that were created.
func (e *Engine) Provision(ctx context.Context, ids []string) ([]string, error) {
	for _, id := range ids {
		if err := ValidateAccountID(id); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var created []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := e.accounts.Get(id); err == nil {
			continue
		}
		created = append(created, id)
	}
	if len(created) == 0 {
		return nil, nil
	}

	if err := e.store.ProvisionAccounts(ctx, created); err != nil {
		e.logger.Error("provision accounts failed", "accounts", created, "error", err)
		return nil, fmt.Errorf("%w: provision accounts: %w", ErrStorage, err)
	}
	for _, id := range created {
		e.accounts.Add(id, 0)
	}

	e.logger.Info("accounts provisioned", "accounts", created)
	return created, nil
}

// commit persists c. Callers hold e.mu.
func (e *Engine) commit(ctx context.Context, c Commit) error {
	if err := e.store.CommitState(ctx, c); err != nil {
		e.logger.Error("ledger commit failed",
			"txid", c.Transaction.TxID,
			"type", c.Transaction.Type,
			"error", err,
		)
		return fmt.Errorf("%w: commit %s: %w", ErrStorage, c.Transaction.TxID, err)
	}

	e.logger.Debug("ledger commit",
		"txid", c.Transaction.TxID,
		"type", c.Transaction.Type,
		"from", c.Transaction.From,
		"to", c.Transaction.To,
		"amount_mg", c.Transaction.AmountMg,
	)
	return nil
}

func (e *Engine) notify(ctx context.Context, tx Transaction) {
	for _, o := range e.observers {
		o.TransactionCommitted(ctx, tx)
	}
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Close()
}
