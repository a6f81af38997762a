package security

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const CorrelationIDHeader = "X-Correlation-ID"

// maxCorrelationIDLength bounds client supplied ids that are echoed and logged.
const maxCorrelationIDLength = 128

type correlationIDKey struct{}

// CorrelationID tags each request with the caller's X-Correlation-ID, or a
// fresh UUID when the header is missing or unusable, and echoes it back.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := NormalizeCorrelationID(r.Header.Get(CorrelationIDHeader))

		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), cid)))
	})
}

// WithCorrelationID returns a context carrying cid.
func WithCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}

func CorrelationIDFromContext(ctx context.Context) string {
	if v := ctx.Value(correlationIDKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// NormalizeCorrelationID returns cid when it is safe to echo and log, and a
// fresh UUID otherwise.
func NormalizeCorrelationID(cid string) string {
	if !validCorrelationID(cid) {
		return uuid.NewString()
	}
	return cid
}

func validCorrelationID(cid string) bool {
	if cid == "" || len(cid) > maxCorrelationIDLength {
		return false
	}
	for i := 0; i < len(cid); i++ {
		if c := cid[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
