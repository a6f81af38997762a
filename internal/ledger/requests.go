package ledger

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxAccountIDLength bounds provisioned account identifiers.
const MaxAccountIDLength = 128

// IssueRequest represents the request to mint value into an account
type IssueRequest struct {
	To       string `json:"to"`
	AmountMg int64  `json:"amount_mg"`
	Memo     string `json:"memo"`
}

// NewIssueRequest builds a validated issue request.
func NewIssueRequest(to string, amountMg int64, memo string) (IssueRequest, error) {
	req := IssueRequest{To: to, AmountMg: amountMg, Memo: memo}
	return req, req.Validate()
}

// Validate checks the shape of the request.
func (r IssueRequest) Validate() error {
	if r.To == "" {
		return fmt.Errorf("%w: to is required", ErrInvalidParams)
	}
	if r.AmountMg <= 0 {
		return fmt.Errorf("%w: amount_mg must be positive", ErrInvalidParams)
	}
	return nil
}

// TransferRequest represents the request to move funds between accounts
type TransferRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	AmountMg int64  `json:"amount_mg"`
	Memo     string `json:"memo"`
}

// NewTransferRequest builds a validated transfer request.
func NewTransferRequest(from, to string, amountMg int64, memo string) (TransferRequest, error) {
	req := TransferRequest{From: from, To: to, AmountMg: amountMg, Memo: memo}
	return req, req.Validate()
}

// Validate checks the shape of the request. Self-transfers are rejected.
func (r TransferRequest) Validate() error {
	if r.From == "" || r.To == "" {
		return fmt.Errorf("%w: from and to are required", ErrInvalidParams)
	}
	if r.From == r.To {
		return fmt.Errorf("%w: from and to must be different", ErrInvalidParams)
	}
	if r.AmountMg <= 0 {
		return fmt.Errorf("%w: amount_mg must be positive", ErrInvalidParams)
	}
	return nil
}

// ValidateAccountID checks an identifier submitted for provisioning.
func ValidateAccountID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidParams)
	}
	if len(id) > MaxAccountIDLength {
		return fmt.Errorf("%w: account id longer than %d bytes", ErrInvalidParams, MaxAccountIDLength)
	}
	if strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: account id %q contains whitespace or control characters", ErrInvalidParams, id)
	}
	return nil
}
