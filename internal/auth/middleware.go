package auth

import (
	"net/http"
	"strings"
)

// ErrorWriter writes an error reply with a status and wire code.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code string)

// CredentialsFromRequest collects the shared secret, the bearer token and a
// client certificate that passed chain verification.
func CredentialsFromRequest(r *http.Request) Credentials {
	c := Credentials{APIKey: r.Header.Get(APIKeyHeader)}

	authz := r.Header.Get("Authorization")
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		c.Bearer = strings.TrimSpace(authz[len("bearer "):])
	}

	if r.TLS != nil && len(r.TLS.VerifiedChains) > 0 && len(r.TLS.VerifiedChains[0]) > 0 {
		c.PeerCert = r.TLS.VerifiedChains[0][0]
	}
	return c
}

// Authenticate rejects requests without valid credentials with 401
// "unauthorized" and stores the Principal in the request context.
func Authenticate(a *Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(CredentialsFromRequest(r))
			if err != nil {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireScopes rejects authenticated callers missing any of required with
// 403 "forbidden".
func RequireScopes(onError ErrorWriter, required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			for _, s := range required {
				if !p.HasScope(s) {
					onError(w, r, http.StatusForbidden, "forbidden")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
