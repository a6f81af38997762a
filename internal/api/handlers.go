package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/dmjr-ledger/internal/ledger"
	"github.com/example/dmjr-ledger/internal/security"
)

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

type balanceResponse struct {
	AccountID string `json:"accountId"`
	BalanceMg int64  `json:"balance_mg"`
}

type issueRequest struct {
	To       string      `json:"to"`
	AmountMg json.Number `json:"amount_mg"`
	Memo     *string     `json:"memo"`
}

type transferRequest struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	AmountMg json.Number `json:"amount_mg"`
	Memo     *string     `json:"memo"`
}

type provisionRequest struct {
	IDs []string `json:"ids"`
}

type provisionResponse struct {
	Created []string `json:"created"`
}

type consistencyResponse struct {
	Valid    bool                       `json:"valid"`
	Failures int                        `json:"failures"`
	SupplyMg int64                      `json:"supply_mg"`
	Results  []*ledger.ValidationResult `json:"results"`
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// parseAmount accepts any JSON number with an integral value that fits in
// int64, so 5 and 5.0 are the same amount.
func parseAmount(n json.Number) (int64, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("%w: amount_mg is not a number", ledger.ErrInvalidParams)
	}
	if !d.IsInteger() || d.GreaterThan(maxAmount) || d.LessThan(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount_mg must be a positive integer", ledger.ErrInvalidParams)
	}
	return d.IntPart(), nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func memoOf(m *string) string {
	if m == nil {
		return ""
	}
	return *m
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{OK: true, Service: ServiceName})
}

func handleBalance(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		bal, err := deps.Ledger.Balance(id)
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}
		writeJSON(w, r, http.StatusOK, balanceResponse{AccountID: id, BalanceMg: bal})
	}
}

func handleAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, deps.Ledger.Accounts())
	}
}

func handleTransactions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				security.WriteJSONError(w, r, http.StatusBadRequest, ledger.ErrInvalidParams.Error())
				return
			}
			limit = n
		}
		writeJSON(w, r, http.StatusOK, deps.Ledger.RecentTransactions(limit))
	}
}

func handleTransaction(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := deps.Ledger.Transaction(chi.URLParam(r, "txid"))
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}
		writeJSON(w, r, http.StatusOK, tx)
	}
}

func handleIssue(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body issueRequest
		if err := decodeBody(r, &body); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, ledger.ErrInvalidParams.Error())
			return
		}
		amount, err := parseAmount(body.AmountMg)
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}

		req, err := ledger.NewIssueRequest(body.To, amount, memoOf(body.Memo))
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}

		tx, err := deps.Ledger.Issue(r.Context(), req)
		if err != nil {
			writeLedgerError(w, r, err, "dest_not_found")
			return
		}
		writeJSON(w, r, http.StatusOK, tx)
	}
}

func handleTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body transferRequest
		if err := decodeBody(r, &body); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, ledger.ErrInvalidParams.Error())
			return
		}
		amount, err := parseAmount(body.AmountMg)
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}

		req, err := ledger.NewTransferRequest(body.From, body.To, amount, memoOf(body.Memo))
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}

		tx, err := deps.Ledger.Transfer(r.Context(), req)
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}
		writeJSON(w, r, http.StatusOK, tx)
	}
}

func handleProvision(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body provisionRequest
		if err := decodeBody(r, &body); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, ledger.ErrInvalidParams.Error())
			return
		}

		created, err := deps.Ledger.Provision(r.Context(), body.IDs)
		if err != nil {
			writeLedgerError(w, r, err, "")
			return
		}
		if created == nil {
			created = []string{}
		}

		status := http.StatusOK
		if len(created) > 0 {
			status = http.StatusCreated
		}
		writeJSON(w, r, status, provisionResponse{Created: created})
	}
}

func handleConsistency(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := deps.Ledger.Snapshot()
		if snap == nil {
			writeLedgerError(w, r, errors.New("no ledger snapshot"), "")
			return
		}

		results := ledger.NewValidator().ComprehensiveValidation(snap)
		valid, failures := ledger.AllValid(results)

		writeJSON(w, r, http.StatusOK, consistencyResponse{
			Valid:    valid,
			Failures: failures,
			SupplyMg: deps.Ledger.Supply(),
			Results:  results,
		})
	}
}
