package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/dmjr-ledger/internal/ledger"
	"github.com/example/dmjr-ledger/internal/security"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	cid := security.CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeLedgerError maps a ledger error kind to its status and wire code.
// notFound overrides the code for a missing account.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidParams):
		security.WriteJSONError(w, r, http.StatusBadRequest, ledger.ErrInvalidParams.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		if notFound == "" {
			notFound = ledger.ErrAccountNotFound.Error()
		}
		security.WriteJSONError(w, r, http.StatusNotFound, notFound)
	case errors.Is(err, ledger.ErrTransactionNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, ledger.ErrTransactionNotFound.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		security.WriteJSONError(w, r, http.StatusBadRequest, ledger.ErrInsufficientFunds.Error())
	case errors.Is(err, ledger.ErrStorage):
		security.WriteJSONError(w, r, http.StatusServiceUnavailable, ledger.ErrStorage.Error())
	default:
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
	}
}
