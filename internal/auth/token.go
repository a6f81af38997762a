package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultIssuer   = "dmjr-ledger"
	DefaultTokenTTL = 15 * time.Minute
	// MaxTokenTTL bounds tokens minted through the token endpoint.
	MaxTokenTTL = 24 * time.Hour
)

var ErrTokensDisabled = errors.New("JWT_SECRET is not configured")

// AccessTokenClaims are the claims of a ledger bearer token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// IssueToken signs an HS256 token for subject. A zero ttl uses TokenTTL.
func (a *Authenticator) IssueToken(subject string, scopes []string, ttl time.Duration) (string, error) {
	if a == nil || len(a.JWTSecret) == 0 {
		return "", ErrTokensDisabled
	}
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	for _, s := range scopes {
		if !knownScope(s) {
			return "", fmt.Errorf("unknown scope %q", s)
		}
	}
	if ttl <= 0 {
		ttl = a.TokenTTL
	}

	now := a.clock()
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scopes: scopes,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.JWTSecret)
}

// ValidateToken checks signature, expiry and issuer.
func (a *Authenticator) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	if a == nil || len(a.JWTSecret) == 0 {
		return nil, ErrTokensDisabled
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock),
		jwt.WithExpirationRequired(),
	}
	if a.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.Issuer))
	}

	claims := &AccessTokenClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (a *Authenticator) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func knownScope(s string) bool {
	for _, k := range AllScopes {
		if s == k {
			return true
		}
	}
	return false
}
