package ledger

import (
	"encoding/json"
	"time"
)

// TxType is the closed set of balance-changing operations.
type TxType string

const (
	TxIssuance TxType = "ISSUANCE"
	TxTransfer TxType = "TRANSFER"
)

func (t TxType) Valid() bool {
	return t == TxIssuance || t == TxTransfer
}

// Account represents a ledger account
type Account struct {
	ID        string `json:"id"`
	BalanceMg int64  `json:"balance_mg"`
}

// Transaction is a committed, immutable ledger record.
// From is empty for issuances and is encoded as JSON null.
type Transaction struct {
	TxID      string    `json:"txid"`
	Timestamp time.Time `json:"timestamp"`
	Type      TxType    `json:"type"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	AmountMg  int64     `json:"amount_mg"`
	Memo      string    `json:"memo"`
}

type wireTransaction struct {
	TxID      string    `json:"txid"`
	Timestamp time.Time `json:"timestamp"`
	Type      TxType    `json:"type"`
	From      *string   `json:"from"`
	To        string    `json:"to"`
	AmountMg  int64     `json:"amount_mg"`
	Memo      string    `json:"memo"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	w := wireTransaction{
		TxID:      t.TxID,
		Timestamp: t.Timestamp,
		Type:      t.Type,
		To:        t.To,
		AmountMg:  t.AmountMg,
		Memo:      t.Memo,
	}
	if t.From != "" {
		from := t.From
		w.From = &from
	}
	return json.Marshal(w)
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Transaction{
		TxID:      w.TxID,
		Timestamp: w.Timestamp,
		Type:      w.Type,
		To:        w.To,
		AmountMg:  w.AmountMg,
		Memo:      w.Memo,
	}
	if w.From != nil {
		t.From = *w.From
	}
	return nil
}

// State is the persisted ledger layout: every account and the full log in commit order.
type State struct {
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}

// Commit is the unit of durable persistence for one engine operation.
// Accounts holds the post-commit balance of every account the operation touched.
// Transaction is nil for balance-only reconciliation commits.
type Commit struct {
	Accounts    []Account
	Transaction *Transaction
}
