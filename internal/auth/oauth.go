package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// TokenHandler mints bearer tokens for an already authenticated caller
// holding ledger:admin. Form fields: grant_type=client_credentials, optional
// subject, scope (space separated, narrowed to the caller's own scopes) and
// expires_in seconds.
func (a *Authenticator) TokenHandler(onError ErrorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			onError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !p.HasScope(ScopeAdmin) {
			onError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		if len(a.JWTSecret) == 0 {
			onError(w, r, http.StatusNotImplemented, "tokens_disabled")
			return
		}

		if err := r.ParseForm(); err != nil {
			onError(w, r, http.StatusBadRequest, "invalid_request")
			return
		}
		if gt := r.FormValue("grant_type"); gt != "" && gt != "client_credentials" {
			onError(w, r, http.StatusBadRequest, "unsupported_grant_type")
			return
		}

		subject := strings.TrimSpace(r.FormValue("subject"))
		if subject == "" {
			subject = p.Subject
		}

		granted := intersectScopes(p.ScopeList(), strings.Fields(r.FormValue("scope")))
		if len(granted) == 0 {
			onError(w, r, http.StatusForbidden, "invalid_scope")
			return
		}

		ttl := a.TokenTTL
		if v := r.FormValue("expires_in"); v != "" {
			secs, err := strconv.Atoi(v)
			if err != nil || secs <= 0 {
				onError(w, r, http.StatusBadRequest, "invalid_request")
				return
			}
			ttl = time.Duration(secs) * time.Second
		}
		if ttl > MaxTokenTTL {
			ttl = MaxTokenTTL
		}

		signed, err := a.IssueToken(subject, granted, ttl)
		if err != nil {
			onError(w, r, http.StatusInternalServerError, "server_error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: signed,
			TokenType:   "Bearer",
			ExpiresIn:   int64(ttl.Seconds()),
			Scope:       strings.Join(granted, " "),
		})
	}
}

// intersectScopes returns the requested scopes found in allowed, or all of
// allowed when nothing was requested. allowed must be sorted.
func intersectScopes(allowed []string, requested []string) []string {
	if len(requested) == 0 {
		return allowed
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		allowedSet[s] = struct{}{}
	}

	var out []string
	seen := map[string]struct{}{}
	for _, s := range requested {
		if _, ok := allowedSet[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
