package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/example/dmjr-ledger/internal/rpc"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "dev"

type dialFunc func(rpc.DialConfig) (*rpc.Client, error)

// ctl carries what every command needs.
type ctl struct {
	w    io.Writer
	e    io.Writer
	dial dialFunc
}

func main() {
	app := newApp(os.Stdout, os.Stderr, func(cfg rpc.DialConfig) (*rpc.Client, error) {
		return rpc.Dial(cfg)
	})
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl: %s\n", err)
		os.Exit(1)
	}
}

func newApp(w, e io.Writer, dial dialFunc) *cli.App {
	m := &ctl{w: w, e: e, dial: dial}

	app := cli.NewApp()
	app.Name = "ledgerctl"
	app.Usage = "operate a DMJR ledger over gRPC"
	app.Version = version
	app.HideVersion = true
	app.Writer = w
	app.ErrWriter = e

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "addr, a",
			Value:  "localhost:50051",
			EnvVar: "LEDGER_GRPC_ADDR",
			Usage:  " ledger gRPC `HOST:PORT`",
		},
		cli.StringFlag{
			Name:   "api-key, k",
			EnvVar: "API_KEY",
			Usage:  " shared secret sent as x-dmjr-key `KEY`",
		},
		cli.StringFlag{
			Name:   "token, t",
			EnvVar: "LEDGER_TOKEN",
			Usage:  " bearer `JWT`",
		},
		cli.StringFlag{
			Name:  "tls-ca",
			Usage: " CA bundle enabling TLS `FILE`",
		},
		cli.StringFlag{
			Name:  "tls-cert",
			Usage: " client certificate for mTLS `FILE`",
		},
		cli.StringFlag{
			Name:  "tls-key",
			Usage: " client key for mTLS `FILE`",
		},
		cli.StringFlag{
			Name:  "server-name",
			Usage: " expected server certificate `NAME`",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: 10 * time.Second,
			Usage: " per call `DURATION`",
		},
	}

	amountFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "amount, n",
			Usage: "*amount to move `NUMBER`",
		},
		cli.StringFlag{
			Name:  "units, u",
			Value: unitsMilligrams,
			Usage: " amount scale `mg|g`: mg is the ledger's minor unit, g is a display scale of 1000 mg",
		},
		cli.StringFlag{
			Name:  "memo, m",
			Usage: " free text `MEMO`",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "balance",
			Usage:     "display the balance of an account",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "account, a",
					Usage: "*account `ID`",
				},
			},
			Action: m.runBalance,
		},
		{
			Name:   "accounts",
			Usage:  "list accounts and balances",
			Action: m.runAccounts,
		},
		{
			Name:  "transactions",
			Usage: "list recent transactions, newest first",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "count, c",
					Value: 20,
					Usage: " maximum records to output `COUNT`",
				},
			},
			Action: m.runTransactions,
		},
		{
			Name:      "transaction",
			Usage:     "display one transaction",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "txid",
					Usage: "*transaction `TXID`",
				},
			},
			Action: m.runTransaction,
		},
		{
			Name:      "issue",
			Usage:     "issue new balance to an account",
			ArgsUsage: "\n   (* = required)",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "to",
					Usage: "*receiving account `ID`",
				},
			}, amountFlags...),
			Action: m.runIssue,
		},
		{
			Name:      "transfer",
			Usage:     "move balance between two accounts",
			ArgsUsage: "\n   (* = required)",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "from",
					Usage: "*sending account `ID`",
				},
				cli.StringFlag{
					Name:  "to",
					Usage: "*receiving account `ID`",
				},
			}, amountFlags...),
			Action: m.runTransfer,
		},
		{
			Name:      "provision",
			Usage:     "create accounts that do not exist yet",
			ArgsUsage: "ID...",
			Action:    m.runProvision,
		},
		{
			Name:   "verify",
			Usage:  "run the ledger consistency checks",
			Action: m.runVerify,
		},
		{
			Name:      "token",
			Usage:     "sign an access token locally with JWT_SECRET",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:   "secret",
					EnvVar: "JWT_SECRET",
					Usage:  "*HS256 signing `SECRET`",
				},
				cli.StringFlag{
					Name:  "subject, s",
					Usage: "*token `SUBJECT`",
				},
				cli.StringSliceFlag{
					Name:  "scope",
					Usage: " granted `SCOPE`, repeatable (default ledger:read)",
				},
				cli.DurationFlag{
					Name:  "ttl",
					Usage: " token lifetime `DURATION`",
				},
			},
			Action: m.runToken,
		},
		{
			Name:  "version",
			Usage: "display ledgerctl version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}
	return app
}
