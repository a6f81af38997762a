package auth

import (
	"context"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"sort"
	"time"

	"github.com/example/dmjr-ledger/internal/security"
)

// Scopes granted to callers.
const (
	ScopeRead  = "ledger:read"
	ScopeWrite = "ledger:write"
	ScopeAdmin = "ledger:admin"
)

// APIKeyHeader carries the shared secret.
const APIKeyHeader = "x-dmjr-key"

// Authentication methods recorded on a Principal.
const (
	MethodNone   = "none"
	MethodAPIKey = "api_key"
	MethodJWT    = "jwt"
	MethodMTLS   = "mtls"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// AllScopes is what the shared secret and an open ledger grant.
var AllScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// Principal is an authenticated caller.
type Principal struct {
	Subject string
	Method  string
	Scopes  map[string]struct{}
}

func newPrincipal(subject, method string, scopes []string) *Principal {
	p := &Principal{Subject: subject, Method: method, Scopes: make(map[string]struct{}, len(scopes))}
	for _, s := range scopes {
		p.Scopes[s] = struct{}{}
	}
	return p
}

func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Scopes[scope]
	return ok
}

// ScopeList returns the granted scopes sorted.
func (p *Principal) ScopeList() []string {
	out := make([]string, 0, len(p.Scopes))
	for s := range p.Scopes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Credentials are what a caller presented on one request.
type Credentials struct {
	APIKey string
	Bearer string
	// PeerCert is the verified client certificate, if any.
	PeerCert *x509.Certificate
}

// Authenticator checks the shared secret, HS256 bearer tokens and verified
// client certificates. With no secret configured the ledger is open and every
// caller gets all scopes.
type Authenticator struct {
	APIKey    string
	JWTSecret []byte
	Issuer    string
	TokenTTL  time.Duration

	now func() time.Time
}

func NewAuthenticator(apiKey, jwtSecret string) *Authenticator {
	a := &Authenticator{
		APIKey:   apiKey,
		Issuer:   DefaultIssuer,
		TokenTTL: DefaultTokenTTL,
		now:      time.Now,
	}
	if jwtSecret != "" {
		a.JWTSecret = []byte(jwtSecret)
	}
	return a
}

// Enabled reports whether callers must authenticate.
func (a *Authenticator) Enabled() bool {
	return a != nil && (a.APIKey != "" || len(a.JWTSecret) > 0)
}

// Authenticate resolves the caller. A verified client certificate wins over
// the shared secret, which wins over a bearer token.
func (a *Authenticator) Authenticate(c Credentials) (*Principal, error) {
	if !a.Enabled() {
		return newPrincipal("anonymous", MethodNone, AllScopes), nil
	}

	if c.PeerCert != nil {
		subject, scopes, err := security.ClientIdentity(c.PeerCert)
		if err != nil {
			return nil, errors.Join(ErrUnauthenticated, err)
		}
		if len(scopes) == 0 {
			scopes = []string{ScopeRead}
		}
		return newPrincipal(subject, MethodMTLS, scopes), nil
	}

	if c.APIKey != "" {
		if a.APIKey != "" && subtle.ConstantTimeCompare([]byte(c.APIKey), []byte(a.APIKey)) == 1 {
			return newPrincipal("api-key", MethodAPIKey, AllScopes), nil
		}
		return nil, ErrUnauthenticated
	}

	if c.Bearer != "" && len(a.JWTSecret) > 0 {
		claims, err := a.ValidateToken(c.Bearer)
		if err != nil {
			return nil, errors.Join(ErrUnauthenticated, err)
		}
		return newPrincipal(claims.Subject, MethodJWT, claims.Scopes), nil
	}

	return nil, ErrUnauthenticated
}
