package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/dmjr-ledger/internal/api"
	"github.com/example/dmjr-ledger/internal/auth"
	"github.com/example/dmjr-ledger/internal/config"
	"github.com/example/dmjr-ledger/internal/events"
	"github.com/example/dmjr-ledger/internal/ledger"
	"github.com/example/dmjr-ledger/internal/rpc"
	"github.com/example/dmjr-ledger/internal/security"
	"github.com/example/dmjr-ledger/pkg/audit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ledger stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := ledger.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	opts := []ledger.Option{ledger.WithLogger(logger.With("component", "ledger"))}
	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger.With("component", "events"))
		opts = append(opts, ledger.WithObserver(publisher))
		defer publisher.Close()
	}

	engine, err := ledger.Open(ctx, store, opts...)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer engine.Close()

	if len(cfg.SeedAccounts) > 0 {
		if _, err := engine.Provision(ctx, cfg.SeedAccounts); err != nil {
			return err
		}
	}

	allowlist, err := security.ParseCIDRAllowlist(cfg.IPAllowlist)
	if err != nil {
		return err
	}

	var limiter security.RateLimiter = security.NewLocalLimiter(cfg.RateLimitCapacity, cfg.RateLimitRefillSec)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		limiter = &security.RedisTokenBucket{
			Redis:      redisClient,
			Prefix:     "dmjr_ledger",
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: cfg.RateLimitRefillSec,
		}
	}

	var tlsCfg *tls.Config
	if cfg.TLSEnabled() {
		tlsCfg, err = security.LoadServerTLSConfig(security.TLSConfig{
			CertFile: cfg.TLSCert,
			KeyFile:  cfg.TLSKey,
			CAFile:   cfg.TLSCA,
		})
		if err != nil {
			return err
		}
	}

	authenticator := auth.NewAuthenticator(cfg.APIKey, cfg.JWTSecret)
	if !authenticator.Enabled() {
		logger.Warn("API_KEY and JWT_SECRET are unset; the ledger API is open")
	}
	auditor := audit.NewChainLogger(audit.WithSink(logger.With("component", "audit")))

	router := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Ledger:       engine,
		Auth:         authenticator,
		Auditor:      auditor,
		RateLimiter:  limiter,
		IPAllowlist:  allowlist,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsCfg,
	}
	grpcSrv := rpc.NewServer(engine, rpc.ServerConfig{
		Logger:      logger,
		Auth:        authenticator,
		Auditor:     auditor,
		RateLimiter: limiter,
		TLS:         tlsCfg,
	})

	httpLn, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		httpLn = tls.NewListener(httpLn, tlsCfg)
	}
	grpcLn, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		httpLn.Close()
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("dmjr-ledger-api listening", "addr", cfg.HTTPAddr, "tls", tlsCfg != nil, "store", cfg.Store.Driver)
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("ledger gRPC listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(grpcLn); err != nil {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}

	seq, head := auditor.Head()
	logger.Info("audit chain head", "seq", seq, "hash", head)
	return serveErr
}
