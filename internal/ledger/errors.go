package ledger

import "errors"

// error kinds reported to callers; wrap with fmt.Errorf("%w: ...") for context
var (
	ErrInvalidParams     = errors.New("invalid_params")
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrStorage           = errors.New("storage_error")

	ErrTransactionNotFound = errors.New("transaction_not_found")
)

// Code returns the wire tag for err, or "internal_error" when err is not one of
// the ledger error kinds.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParams):
		return ErrInvalidParams.Error()
	case errors.Is(err, ErrAccountNotFound):
		return ErrAccountNotFound.Error()
	case errors.Is(err, ErrInsufficientFunds):
		return ErrInsufficientFunds.Error()
	case errors.Is(err, ErrStorage):
		return ErrStorage.Error()
	case errors.Is(err, ErrTransactionNotFound):
		return ErrTransactionNotFound.Error()
	default:
		return "internal_error"
	}
}
