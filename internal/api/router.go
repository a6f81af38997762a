package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/dmjr-ledger/internal/auth"
	"github.com/example/dmjr-ledger/internal/ledger"
	"github.com/example/dmjr-ledger/internal/security"
	"github.com/example/dmjr-ledger/pkg/audit"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "dmjr-ledger-api"

type Auditor interface {
	Record(ev audit.Event) *audit.LogEntry
}

// Ledger is the engine surface the HTTP API serves.
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

type Dependencies struct {
	Logger *slog.Logger
	Ledger Ledger
	// Auth is required; an Authenticator without secrets leaves the API open.
	Auth *auth.Authenticator

	Auditor      Auditor
	RateLimiter  security.RateLimiter
	IPAllowlist  []*net.IPNet
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Auth == nil {
		deps.Auth = auth.NewAuthenticator("", "")
	}

	invalid := ledger.ErrInvalidParams.Error()
	issueV := security.MustJSONSchemaValidator(issueSchema, invalid)
	transferV := security.MustJSONSchemaValidator(transferSchema, invalid)
	provisionV := security.MustJSONSchemaValidator(provisionSchema, invalid)

	onAuthError := auth.ErrorWriter(security.WriteJSONError)
	read := auth.RequireScopes(onAuthError, auth.ScopeRead)
	write := auth.RequireScopes(onAuthError, auth.ScopeWrite)
	admin := auth.RequireScopes(onAuthError, auth.ScopeAdmin)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	if deps.MaxBodyBytes > 0 {
		r.Use(security.MaxBodyBytes(deps.MaxBodyBytes))
	}
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}

	// liveness probe for orchestrators; carries no ledger data
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Auth, onAuthError))
		if deps.Auditor != nil {
			r.Use(AuditMiddleware(deps.Auditor))
		}

		r.Get("/health", handleHealth)

		r.With(read).Get("/balance/{id}", handleBalance(deps))
		r.With(read).Get("/accounts", handleAccounts(deps))
		r.With(admin, provisionV.Middleware).Post("/accounts", handleProvision(deps))
		r.With(read).Get("/transactions", handleTransactions(deps))
		r.With(read).Get("/transactions/{txid}", handleTransaction(deps))
		r.With(read).Get("/consistency", handleConsistency(deps))

		r.With(write, issueV.Middleware).Post("/issue", handleIssue(deps))
		r.With(write, transferV.Middleware).Post("/transfer", handleTransfer(deps))

		r.Post("/token", deps.Auth.TokenHandler(onAuthError))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r
}

func rateLimitKeyByIP(r *http.Request) string {
	host := security.ClientIP(r)
	if host == "" {
		return ""
	}
	return "ip:" + host
}
