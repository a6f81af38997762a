package rpc

import (
	"context"
	"fmt"
	"time"

	ledgerv1 "github.com/example/dmjr-ledger/api/ledgerv1"
	"github.com/example/dmjr-ledger/internal/ledger"
)

// Ledger is the engine surface served over gRPC.
type Ledger interface {
	Issue(ctx context.Context, req ledger.IssueRequest) (ledger.Transaction, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.Transaction, error)
	Provision(ctx context.Context, ids []string) ([]string, error)

	Balance(id string) (int64, error)
	Accounts() []ledger.Account
	RecentTransactions(limit int) []ledger.Transaction
	Transaction(txid string) (ledger.Transaction, error)
	Snapshot() *ledger.State
	Supply() int64
}

// Service implements ledgerv1.LedgerServer on top of the engine.
type Service struct {
	ledgerv1.UnimplementedLedgerServer
	ledger Ledger
}

func NewService(l Ledger) *Service {
	return &Service{ledger: l}
}

func (s *Service) Issue(ctx context.Context, req *ledgerv1.IssueRequest) (*ledgerv1.Transaction, error) {
	in, err := ledger.NewIssueRequest(req.To, req.AmountMg, req.Memo)
	if err != nil {
		return nil, toStatus(err)
	}
	tx, err := s.ledger.Issue(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return toWireTransaction(tx), nil
}

func (s *Service) Transfer(ctx context.Context, req *ledgerv1.TransferRequest) (*ledgerv1.Transaction, error) {
	in, err := ledger.NewTransferRequest(req.From, req.To, req.AmountMg, req.Memo)
	if err != nil {
		return nil, toStatus(err)
	}
	tx, err := s.ledger.Transfer(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return toWireTransaction(tx), nil
}

func (s *Service) GetBalance(ctx context.Context, req *ledgerv1.GetBalanceRequest) (*ledgerv1.GetBalanceResponse, error) {
	if req.AccountID == "" {
		return nil, toStatus(fmt.Errorf("%w: account_id is required", ledger.ErrInvalidParams))
	}
	bal, err := s.ledger.Balance(req.AccountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ledgerv1.GetBalanceResponse{AccountID: req.AccountID, BalanceMg: bal}, nil
}

func (s *Service) ListAccounts(ctx context.Context, req *ledgerv1.ListAccountsRequest) (*ledgerv1.ListAccountsResponse, error) {
	accounts := s.ledger.Accounts()
	out := make([]*ledgerv1.Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, &ledgerv1.Account{ID: a.ID, BalanceMg: a.BalanceMg})
	}
	return &ledgerv1.ListAccountsResponse{Accounts: out, Total: int32(len(out))}, nil
}

func (s *Service) RecentTransactions(ctx context.Context, req *ledgerv1.RecentTransactionsRequest) (*ledgerv1.RecentTransactionsResponse, error) {
	txs := s.ledger.RecentTransactions(int(req.Limit))
	out := make([]*ledgerv1.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toWireTransaction(tx))
	}
	return &ledgerv1.RecentTransactionsResponse{Transactions: out}, nil
}

func (s *Service) GetTransaction(ctx context.Context, req *ledgerv1.GetTransactionRequest) (*ledgerv1.Transaction, error) {
	if req.TxID == "" {
		return nil, toStatus(fmt.Errorf("%w: txid is required", ledger.ErrInvalidParams))
	}
	tx, err := s.ledger.Transaction(req.TxID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toWireTransaction(tx), nil
}

func (s *Service) ProvisionAccounts(ctx context.Context, req *ledgerv1.ProvisionAccountsRequest) (*ledgerv1.ProvisionAccountsResponse, error) {
	if len(req.IDs) == 0 {
		return nil, toStatus(fmt.Errorf("%w: ids is required", ledger.ErrInvalidParams))
	}
	created, err := s.ledger.Provision(ctx, req.IDs)
	if err != nil {
		return nil, toStatus(err)
	}
	if created == nil {
		created = []string{}
	}
	return &ledgerv1.ProvisionAccountsResponse{Created: created}, nil
}

func (s *Service) ValidateConsistency(ctx context.Context, req *ledgerv1.ValidateConsistencyRequest) (*ledgerv1.ValidateConsistencyResponse, error) {
	snap := s.ledger.Snapshot()
	results := ledger.NewValidator().ComprehensiveValidation(snap)

	resp := &ledgerv1.ValidateConsistencyResponse{}
	for _, result := range results {
		r := &ledgerv1.ValidationResult{
			IsValid:        result.IsValid,
			ValidationType: result.ValidationType,
			Message:        result.Message,
			AccountID:      result.AccountID,
			TransactionID:  result.TransactionID,
			Timestamp:      result.Timestamp.UTC().Format(time.RFC3339),
		}
		if len(result.Details) > 0 {
			r.Details = make(map[string]string, len(result.Details))
			for k, v := range result.Details {
				r.Details[k] = fmt.Sprintf("%v", v)
			}
		}
		resp.Results = append(resp.Results, r)
		if !result.IsValid {
			resp.ErrorCount++
		}
	}
	resp.IsFullyValid = resp.ErrorCount == 0
	resp.SupplyMg = s.ledger.Supply()
	return resp, nil
}

func toWireTransaction(tx ledger.Transaction) *ledgerv1.Transaction {
	return &ledgerv1.Transaction{
		TxID:      tx.TxID,
		Timestamp: tx.Timestamp.UTC().Format(time.RFC3339Nano),
		Type:      string(tx.Type),
		From:      tx.From,
		To:        tx.To,
		AmountMg:  tx.AmountMg,
		Memo:      tx.Memo,
	}
}

var _ ledgerv1.LedgerServer = (*Service)(nil)
