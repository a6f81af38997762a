package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	ledgerv1 "github.com/example/dmjr-ledger/api/ledgerv1"
	"github.com/example/dmjr-ledger/internal/auth"
	"github.com/example/dmjr-ledger/internal/security"
	"github.com/example/dmjr-ledger/pkg/audit"
)

// correlationIDMetadata is the gRPC metadata key for correlation ids.
var correlationIDMetadata = strings.ToLower(security.CorrelationIDHeader)

// methodScopes names the scope each method requires.
var methodScopes = map[string]string{
	ledgerv1.MethodIssue:               auth.ScopeWrite,
	ledgerv1.MethodTransfer:            auth.ScopeWrite,
	ledgerv1.MethodGetBalance:          auth.ScopeRead,
	ledgerv1.MethodListAccounts:        auth.ScopeRead,
	ledgerv1.MethodRecentTransactions:  auth.ScopeRead,
	ledgerv1.MethodGetTransaction:      auth.ScopeRead,
	ledgerv1.MethodProvisionAccounts:   auth.ScopeAdmin,
	ledgerv1.MethodValidateConsistency: auth.ScopeRead,
}

type Auditor interface {
	Record(ev audit.Event) *audit.LogEntry
}

// RecoveryInterceptor turns handler panics into codes.Internal.
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("grpc handler panic",
					"method", info.FullMethod,
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal_error")
			}
		}()
		return handler(ctx, req)
	}
}

// CorrelationIDInterceptor carries the caller's correlation id, or a fresh
// one, in the context and the response header.
func CorrelationIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		cid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(correlationIDMetadata); len(v) > 0 {
				cid = v[0]
			}
		}
		cid = security.NormalizeCorrelationID(cid)
		_ = grpc.SetHeader(ctx, metadata.Pairs(correlationIDMetadata, cid))
		return handler(security.WithCorrelationID(ctx, cid), req)
	}
}

// LoggingInterceptor logs one line per call.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.Internal, codes.Unavailable, codes.Unknown:
			level = slog.LevelError
		}
		logger.LogAttrs(ctx, level, "grpc_request",
			slog.String("cid", security.CorrelationIDFromContext(ctx)),
			slog.String("method", info.FullMethod),
			slog.String("remote", peerHost(ctx)),
			slog.String("code", code.String()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return resp, err
	}
}

// RateLimitInterceptor applies l per peer address.
func RateLimitInterceptor(l security.RateLimiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		host := peerHost(ctx)
		if host == "" {
			return handler(ctx, req)
		}
		allowed, _, err := l.Allow(ctx, "ip:"+host)
		if err != nil {
			return nil, status.Error(codes.Unavailable, "rate_limiter_unavailable")
		}
		if !allowed {
			return nil, status.Error(codes.ResourceExhausted, "rate_limited")
		}
		return handler(ctx, req)
	}
}

// AuthInterceptor authenticates the caller from metadata or its verified
// client certificate and enforces the method's scope.
func AuthInterceptor(a *auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		p, err := a.Authenticate(credentialsFromContext(ctx))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		scope, ok := methodScopes[info.FullMethod]
		if !ok {
			scope = auth.ScopeAdmin
		}
		if !p.HasScope(scope) {
			return nil, status.Error(codes.PermissionDenied, "forbidden")
		}
		return handler(auth.WithPrincipal(ctx, p), req)
	}
}

// AuditInterceptor records every authenticated call in the audit chain.
func AuditInterceptor(a Auditor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		actor := "unknown"
		if p, ok := auth.PrincipalFromContext(ctx); ok {
			actor = p.Method + ":" + p.Subject
		}
		outcome := "ok"
		if err != nil {
			outcome = WireCode(err)
		}
		a.Record(audit.Event{
			Actor:         actor,
			Action:        info.FullMethod,
			Resource:      resourceOf(req),
			Outcome:       outcome,
			CorrelationID: security.CorrelationIDFromContext(ctx),
			Detail:        fmt.Sprintf("dur_ms=%d", time.Since(start).Milliseconds()),
		})
		return resp, err
	}
}

func resourceOf(req any) string {
	switch r := req.(type) {
	case *ledgerv1.IssueRequest:
		return r.To
	case *ledgerv1.TransferRequest:
		return r.From + "->" + r.To
	case *ledgerv1.GetBalanceRequest:
		return r.AccountID
	case *ledgerv1.GetTransactionRequest:
		return r.TxID
	case *ledgerv1.ProvisionAccountsRequest:
		return strings.Join(r.IDs, ",")
	default:
		return ""
	}
}

func credentialsFromContext(ctx context.Context) auth.Credentials {
	var c auth.Credentials
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(auth.APIKeyHeader); len(v) > 0 {
			c.APIKey = v[0]
		}
		if v := md.Get("authorization"); len(v) > 0 {
			const prefix = "bearer "
			if len(v[0]) > len(prefix) && strings.EqualFold(v[0][:len(prefix)], prefix) {
				c.Bearer = strings.TrimSpace(v[0][len(prefix):])
			}
		}
	}

	if p, ok := peer.FromContext(ctx); ok && p.AuthInfo != nil {
		if info, ok := p.AuthInfo.(credentials.TLSInfo); ok {
			chains := info.State.VerifiedChains
			if len(chains) > 0 && len(chains[0]) > 0 {
				c.PeerCert = chains[0][0]
			}
		}
	}
	return c
}

func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
