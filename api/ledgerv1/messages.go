package ledgerv1

type Account struct {
	ID        string `json:"id"`
	BalanceMg int64  `json:"balance_mg"`
}

// Transaction is a committed ledger record. From is empty for issuances.
type Transaction struct {
	TxID      string `json:"txid"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	AmountMg  int64  `json:"amount_mg"`
	Memo      string `json:"memo"`
}

type IssueRequest struct {
	To       string `json:"to"`
	AmountMg int64  `json:"amount_mg"`
	Memo     string `json:"memo,omitempty"`
}

type TransferRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	AmountMg int64  `json:"amount_mg"`
	Memo     string `json:"memo,omitempty"`
}

type GetBalanceRequest struct {
	AccountID string `json:"account_id"`
}

type GetBalanceResponse struct {
	AccountID string `json:"account_id"`
	BalanceMg int64  `json:"balance_mg"`
}

type ListAccountsRequest struct{}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
	Total    int32      `json:"total"`
}

type RecentTransactionsRequest struct {
	// Limit <= 0 means the server default of 200.
	Limit int32 `json:"limit,omitempty"`
}

type RecentTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type GetTransactionRequest struct {
	TxID string `json:"txid"`
}

type ProvisionAccountsRequest struct {
	IDs []string `json:"ids"`
}

type ProvisionAccountsResponse struct {
	Created []string `json:"created"`
}

type ValidateConsistencyRequest struct{}

type ValidationResult struct {
	IsValid        bool              `json:"is_valid"`
	ValidationType string            `json:"validation_type"`
	Message        string            `json:"message"`
	AccountID      string            `json:"account_id,omitempty"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	Timestamp      string            `json:"timestamp"`
	Details        map[string]string `json:"details,omitempty"`
}

type ValidateConsistencyResponse struct {
	Results      []*ValidationResult `json:"results"`
	IsFullyValid bool                `json:"is_fully_valid"`
	ErrorCount   int32               `json:"error_count"`
	SupplyMg     int64               `json:"supply_mg"`
}
