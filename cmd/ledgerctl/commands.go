package main

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli"

	ledgerv1 "github.com/example/dmjr-ledger/api/ledgerv1"
	"github.com/example/dmjr-ledger/internal/auth"
	"github.com/example/dmjr-ledger/internal/rpc"
	"github.com/example/dmjr-ledger/internal/security"
)

// connect dials the ledger named by the global flags and returns a context
// bounded by --timeout.
func (m *ctl) connect(c *cli.Context) (*rpc.Client, context.Context, context.CancelFunc, error) {
	cfg := rpc.DialConfig{
		Target: c.GlobalString("addr"),
		APIKey: c.GlobalString("api-key"),
		Token:  c.GlobalString("token"),
	}
	if c.GlobalString("tls-ca") != "" || c.GlobalString("tls-cert") != "" {
		tlsCfg, err := security.LoadClientTLSConfig(security.TLSConfig{
			CertFile:   c.GlobalString("tls-cert"),
			KeyFile:    c.GlobalString("tls-key"),
			CAFile:     c.GlobalString("tls-ca"),
			ServerName: c.GlobalString("server-name"),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		cfg.TLS = tlsCfg
	}

	client, err := m.dial(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("timeout"))
	return client, ctx, cancel, nil
}

func requireString(c *cli.Context, name string) (string, error) {
	v := strings.TrimSpace(c.String(name))
	if v == "" {
		return "", errors.New(name + " is required")
	}
	return v, nil
}

type balanceOutput struct {
	AccountID string `json:"account_id"`
	BalanceMg int64  `json:"balance_mg"`
	BalanceG  string `json:"balance_g"`
}

func (m *ctl) runBalance(c *cli.Context) error {
	id, err := requireString(c, "account")
	if err != nil {
		return err
	}

	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	resp, err := client.GetBalance(ctx, &ledgerv1.GetBalanceRequest{AccountID: id})
	if err != nil {
		return err
	}
	return printJson(m.w, balanceOutput{
		AccountID: resp.AccountID,
		BalanceMg: resp.BalanceMg,
		BalanceG:  formatGrams(resp.BalanceMg),
	})
}

func (m *ctl) runAccounts(c *cli.Context) error {
	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	resp, err := client.ListAccounts(ctx, &ledgerv1.ListAccountsRequest{})
	if err != nil {
		return err
	}
	return printJson(m.w, resp)
}

func (m *ctl) runTransactions(c *cli.Context) error {
	count := c.Int("count")
	if count <= 0 {
		return errors.New("count must be positive")
	}

	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	resp, err := client.RecentTransactions(ctx, &ledgerv1.RecentTransactionsRequest{Limit: int32(min(count, 1<<20))})
	if err != nil {
		return err
	}
	return printJson(m.w, resp.Transactions)
}

func (m *ctl) runTransaction(c *cli.Context) error {
	txid, err := requireString(c, "txid")
	if err != nil {
		return err
	}

	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	tx, err := client.GetTransaction(ctx, &ledgerv1.GetTransactionRequest{TxID: txid})
	if err != nil {
		return err
	}
	return printJson(m.w, tx)
}

func (m *ctl) runIssue(c *cli.Context) error {
	to, err := requireString(c, "to")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String("amount"), c.String("units"))
	if err != nil {
		return err
	}

	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	tx, err := client.Issue(ctx, &ledgerv1.IssueRequest{To: to, AmountMg: amount, Memo: c.String("memo")})
	if err != nil {
		return err
	}
	return printJson(m.w, tx)
}

func (m *ctl) runTransfer(c *cli.Context) error {
	from, err := requireString(c, "from")
	if err != nil {
		return err
	}
	to, err := requireString(c, "to")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String("amount"), c.String("units"))
	if err != nil {
		return err
	}

	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	tx, err := client.Transfer(ctx, &ledgerv1.TransferRequest{From: from, To: to, AmountMg: amount, Memo: c.String("memo")})
	if err != nil {
		return err
	}
	return printJson(m.w, tx)
}

func (m *ctl) runProvision(c *cli.Context) error {
	ids := []string(c.Args())
	if len(ids) == 0 {
		return errors.New("at least one account ID is required")
	}

	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	resp, err := client.ProvisionAccounts(ctx, &ledgerv1.ProvisionAccountsRequest{IDs: ids})
	if err != nil {
		return err
	}
	return printJson(m.w, resp)
}

func (m *ctl) runVerify(c *cli.Context) error {
	client, ctx, cancel, err := m.connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	defer cancel()

	resp, err := client.ValidateConsistency(ctx, &ledgerv1.ValidateConsistencyRequest{})
	if err != nil {
		return err
	}
	if err := printJson(m.w, resp); err != nil {
		return err
	}
	if !resp.IsFullyValid {
		return errors.New("ledger is inconsistent")
	}
	return nil
}

func (m *ctl) runToken(c *cli.Context) error {
	secret, err := requireString(c, "secret")
	if err != nil {
		return err
	}
	subject, err := requireString(c, "subject")
	if err != nil {
		return err
	}
	scopes := c.StringSlice("scope")
	if len(scopes) == 0 {
		scopes = []string{auth.ScopeRead}
	}

	a := auth.NewAuthenticator("", secret)
	ttl := c.Duration("ttl")
	if ttl <= 0 {
		ttl = a.TokenTTL
	}
	token, err := a.IssueToken(subject, scopes, ttl)
	if err != nil {
		return err
	}
	return printJson(m.w, auth.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Scope:       strings.Join(scopes, " "),
	})
}
