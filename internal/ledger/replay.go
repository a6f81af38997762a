package ledger

import (
	"fmt"
	"math"
)

// ReplayResult is the ledger state regenerated from the transaction log.
type ReplayResult struct {
	// Accounts in the persisted order with balances derived from the log.
	Accounts []Account
	// Drift lists accounts whose persisted balance differs from the replayed one.
	Drift []BalanceDrift
	// Supply is the total amount issued.
	Supply int64
}

// BalanceDrift records a persisted balance that disagrees with the log.
type BalanceDrift struct {
	AccountID string `json:"account_id"`
	Persisted int64  `json:"persisted_balance_mg"`
	Replayed  int64  `json:"replayed_balance_mg"`
}

// Replay rebuilds balances by applying every transaction of s in order to
// accounts that start at zero. It fails when the log itself is inconsistent.
func Replay(s *State) (*ReplayResult, error) {
	balances := make(map[string]int64, len(s.Accounts))
	for _, a := range s.Accounts {
		if _, dup := balances[a.ID]; dup {
			return nil, fmt.Errorf("duplicate account %s", a.ID)
		}
		balances[a.ID] = 0
	}

	var supply int64
	seen := make(map[string]bool, len(s.Transactions))
	for i, tx := range s.Transactions {
		if tx.TxID == "" || seen[tx.TxID] {
			return nil, fmt.Errorf("transaction %d: missing or duplicate txid %q", i, tx.TxID)
		}
		seen[tx.TxID] = true

		if i > 0 && tx.Timestamp.Before(s.Transactions[i-1].Timestamp) {
			return nil, fmt.Errorf("transaction %s: timestamp precedes previous record", tx.TxID)
		}
		if tx.AmountMg <= 0 {
			return nil, fmt.Errorf("transaction %s: non-positive amount %d", tx.TxID, tx.AmountMg)
		}
		if _, ok := balances[tx.To]; !ok {
			return nil, fmt.Errorf("transaction %s: unknown destination %s", tx.TxID, tx.To)
		}

		switch tx.Type {
		case TxIssuance:
			if tx.From != "" {
				return nil, fmt.Errorf("transaction %s: issuance with source %s", tx.TxID, tx.From)
			}
			if supply > math.MaxInt64-tx.AmountMg {
				return nil, fmt.Errorf("transaction %s: total supply overflows", tx.TxID)
			}
			supply += tx.AmountMg
		case TxTransfer:
			bal, ok := balances[tx.From]
			if !ok {
				return nil, fmt.Errorf("transaction %s: unknown source %s", tx.TxID, tx.From)
			}
			if bal < tx.AmountMg {
				return nil, fmt.Errorf("transaction %s: overdraws %s", tx.TxID, tx.From)
			}
			balances[tx.From] = bal - tx.AmountMg
		default:
			return nil, fmt.Errorf("transaction %s: unknown type %q", tx.TxID, tx.Type)
		}
		balances[tx.To] += tx.AmountMg
	}

	res := &ReplayResult{Supply: supply, Accounts: make([]Account, 0, len(s.Accounts))}
	for _, a := range s.Accounts {
		replayed := balances[a.ID]
		res.Accounts = append(res.Accounts, Account{ID: a.ID, BalanceMg: replayed})
		if replayed != a.BalanceMg {
			res.Drift = append(res.Drift, BalanceDrift{AccountID: a.ID, Persisted: a.BalanceMg, Replayed: replayed})
		}
	}
	return res, nil
}
