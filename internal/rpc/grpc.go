package rpc

import (
	"crypto/tls"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	ledgerv1 "github.com/example/dmjr-ledger/api/ledgerv1"
	"github.com/example/dmjr-ledger/internal/auth"
	"github.com/example/dmjr-ledger/internal/security"
)

// DefaultMaxMsgBytes caps request and response messages.
const DefaultMaxMsgBytes = 1 << 20

type ServerConfig struct {
	Logger      *slog.Logger
	Auth        *auth.Authenticator
	Auditor     Auditor
	RateLimiter security.RateLimiter
	TLS         *tls.Config
	MaxMsgBytes int
}

// NewServer returns a gRPC server with the ledger service registered behind
// recovery, correlation, logging, rate limit, auth and audit interceptors.
func NewServer(l Ledger, cfg ServerConfig) *grpc.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.NewAuthenticator("", "")
	}
	if cfg.MaxMsgBytes <= 0 {
		cfg.MaxMsgBytes = DefaultMaxMsgBytes
	}

	interceptors := []grpc.UnaryServerInterceptor{
		RecoveryInterceptor(cfg.Logger),
		CorrelationIDInterceptor(),
		LoggingInterceptor(cfg.Logger),
	}
	if cfg.RateLimiter != nil {
		interceptors = append(interceptors, RateLimitInterceptor(cfg.RateLimiter))
	}
	interceptors = append(interceptors, AuthInterceptor(cfg.Auth))
	if cfg.Auditor != nil {
		interceptors = append(interceptors, AuditInterceptor(cfg.Auditor))
	}

	opts := []grpc.ServerOption{
		grpc.ForceServerCodec(ledgerv1.Codec{}),
		grpc.MaxRecvMsgSize(cfg.MaxMsgBytes),
		grpc.MaxSendMsgSize(cfg.MaxMsgBytes),
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if cfg.TLS != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(cfg.TLS)))
	}

	s := grpc.NewServer(opts...)
	ledgerv1.RegisterLedgerServer(s, NewService(l))
	return s
}
