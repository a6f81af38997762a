package ledger

import (
	"fmt"
	"time"
)

// Validator provides invariants checking for the ledger
type Validator struct {
	now func() time.Time
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	IsValid        bool                   `json:"is_valid"`
	ValidationType string                 `json:"validation_type"`
	Message        string                 `json:"message"`
	AccountID      string                 `json:"account_id,omitempty"`
	TransactionID  string                 `json:"transaction_id,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

func (v *Validator) result(valid bool, kind, msg string) *ValidationResult {
	return &ValidationResult{
		IsValid:        valid,
		ValidationType: kind,
		Message:        msg,
		Timestamp:      v.now(),
	}
}

// ValidateConservation checks that total balances equal total issued value.
func (v *Validator) ValidateConservation(s *State) *ValidationResult {
	var balances, issued int64
	for _, a := range s.Accounts {
		balances += a.BalanceMg
	}
	for _, tx := range s.Transactions {
		if tx.Type == TxIssuance {
			issued += tx.AmountMg
		}
	}

	r := v.result(balances == issued, "conservation", "")
	r.Details = map[string]interface{}{
		"total_balance_mg": balances,
		"total_issued_mg":  issued,
	}
	if r.IsValid {
		r.Message = fmt.Sprintf("conservation holds: balances = issued = %d mg", balances)
	} else {
		r.Message = fmt.Sprintf("conservation violation: balances (%d mg) != issued (%d mg)", balances, issued)
		r.Details["difference_mg"] = balances - issued
	}
	return r
}

// ValidateNonNegative checks that no account balance is negative.
func (v *Validator) ValidateNonNegative(s *State) []*ValidationResult {
	var out []*ValidationResult
	for _, a := range s.Accounts {
		if a.BalanceMg >= 0 {
			continue
		}
		r := v.result(false, "non_negative_balance", fmt.Sprintf("account %s has negative balance %d mg", a.ID, a.BalanceMg))
		r.AccountID = a.ID
		out = append(out, r)
	}
	if len(out) == 0 {
		out = append(out, v.result(true, "non_negative_balance", fmt.Sprintf("all %d balances are non-negative", len(s.Accounts))))
	}
	return out
}

// ValidateLogOrdering checks that timestamps never decrease and txids are unique.
func (v *Validator) ValidateLogOrdering(s *State) *ValidationResult {
	seen := make(map[string]bool, len(s.Transactions))
	for i, tx := range s.Transactions {
		if seen[tx.TxID] {
			r := v.result(false, "log_ordering", fmt.Sprintf("duplicate txid %s", tx.TxID))
			r.TransactionID = tx.TxID
			return r
		}
		seen[tx.TxID] = true

		if i > 0 && tx.Timestamp.Before(s.Transactions[i-1].Timestamp) {
			r := v.result(false, "log_ordering", fmt.Sprintf("transaction %s is timestamped before its predecessor", tx.TxID))
			r.TransactionID = tx.TxID
			r.Details = map[string]interface{}{
				"timestamp":          tx.Timestamp,
				"previous_timestamp": s.Transactions[i-1].Timestamp,
			}
			return r
		}
	}
	return v.result(true, "log_ordering", fmt.Sprintf("%d transactions in non-decreasing timestamp order with unique txids", len(s.Transactions)))
}

// ValidateReplay checks that replaying the log from zero reproduces every balance.
func (v *Validator) ValidateReplay(s *State) []*ValidationResult {
	res, err := Replay(s)
	if err != nil {
		return []*ValidationResult{v.result(false, "replay", fmt.Sprintf("transaction log cannot be replayed: %v", err))}
	}

	if len(res.Drift) == 0 {
		return []*ValidationResult{v.result(true, "replay", fmt.Sprintf("replayed balances match for %d accounts", len(res.Accounts)))}
	}

	out := make([]*ValidationResult, 0, len(res.Drift))
	for _, d := range res.Drift {
		r := v.result(false, "replay", fmt.Sprintf("balance drift: persisted (%d mg) != replayed (%d mg)", d.Persisted, d.Replayed))
		r.AccountID = d.AccountID
		r.Details = map[string]interface{}{
			"persisted_balance_mg": d.Persisted,
			"replayed_balance_mg":  d.Replayed,
			"drift_mg":             d.Persisted - d.Replayed,
		}
		out = append(out, r)
	}
	return out
}

// ComprehensiveValidation performs all validation checks against a snapshot
func (v *Validator) ComprehensiveValidation(s *State) []*ValidationResult {
	var results []*ValidationResult
	results = append(results, v.ValidateConservation(s))
	results = append(results, v.ValidateNonNegative(s)...)
	results = append(results, v.ValidateLogOrdering(s))
	results = append(results, v.ValidateReplay(s)...)
	return results
}

// AllValid reports whether every result passed and how many failed.
func AllValid(results []*ValidationResult) (bool, int) {
	failed := 0
	for _, r := range results {
		if !r.IsValid {
			failed++
		}
	}
	return failed == 0, failed
}
