package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/dmjr-ledger/internal/auth"
	"github.com/example/dmjr-ledger/internal/security"
	"github.com/example/dmjr-ledger/pkg/audit"
)

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// AuditMiddleware records every authenticated request in the audit chain.
// It must run after auth.Authenticate.
func AuditMiddleware(a Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			actor := "unknown"
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				actor = p.Method + ":" + p.Subject
			}
			action := r.Method + " " + r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				action = r.Method + " " + rc.RoutePattern()
			}

			a.Record(audit.Event{
				Actor:         actor,
				Action:        action,
				Resource:      r.URL.Path,
				Outcome:       strconv.Itoa(sw.status),
				CorrelationID: security.CorrelationIDFromContext(r.Context()),
				Detail:        fmt.Sprintf("dur_ms=%d", dur.Milliseconds()),
			})
		})
	}
}
