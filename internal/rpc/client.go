package rpc

import (
	"context"
	"crypto/tls"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	ledgerv1 "github.com/example/dmjr-ledger/api/ledgerv1"
	"github.com/example/dmjr-ledger/internal/auth"
)

type DialConfig struct {
	Target string
	// APIKey is sent as x-dmjr-key; Token as a bearer token.
	APIKey string
	Token  string
	// TLS enables transport security; nil dials in plaintext.
	TLS *tls.Config
}

// callCredentials attaches the shared secret or bearer token to every call.
type callCredentials struct {
	apiKey string
	token  string
	secure bool
}

func (c callCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	md := map[string]string{}
	if c.apiKey != "" {
		md[auth.APIKeyHeader] = c.apiKey
	}
	if c.token != "" {
		md["authorization"] = "Bearer " + c.token
	}
	return md, nil
}

func (c callCredentials) RequireTransportSecurity() bool { return c.secure }

// Client is a ledger client bound to its connection.
type Client struct {
	ledgerv1.LedgerClient
	conn *grpc.ClientConn
}

// Dial connects to a ledger gRPC server. Connecting is lazy; errors surface
// on the first call.
func Dial(cfg DialConfig, opts ...grpc.DialOption) (*Client, error) {
	if cfg.Target == "" {
		return nil, errors.New("rpc: dial target is empty")
	}

	transport := insecure.NewCredentials()
	if cfg.TLS != nil {
		transport = credentials.NewTLS(cfg.TLS)
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(transport),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(ledgerv1.Codec{})),
	}
	if cfg.APIKey != "" || cfg.Token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(callCredentials{
			apiKey: cfg.APIKey,
			token:  cfg.Token,
			secure: cfg.TLS != nil,
		}))
	}

	conn, err := grpc.Dial(cfg.Target, append(dialOpts, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Client{LedgerClient: ledgerv1.NewLedgerClient(conn), conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
