package rpc

import (
	"errors"
	"strings"
	"unicode"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/dmjr-ledger/internal/ledger"
)

// toStatus maps ledger error kinds to gRPC codes. The message starts with the
// wire tag so clients can recover it with WireCode.
func toStatus(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidParams):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrTransactionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ledger.ErrStorage):
		return status.Error(codes.Unavailable, ledger.ErrStorage.Error())
	default:
		return status.Error(codes.Internal, "internal_error")
	}
}

// WireCode returns the ledger wire tag carried by a gRPC error, such as
// "insufficient_funds" or "unauthorized".
func WireCode(err error) string {
	if err == nil {
		return ""
	}
	st, ok := status.FromError(err)
	if !ok {
		return "internal_error"
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return "unauthorized"
	case codes.PermissionDenied:
		return "forbidden"
	case codes.ResourceExhausted:
		return "rate_limited"
	}
	msg := st.Message()
	if i := strings.IndexByte(msg, ':'); i > 0 {
		msg = msg[:i]
	}
	if msg == "" || strings.ContainsAny(msg, " \t") {
		return snakeCase(st.Code().String())
	}
	return msg
}

// snakeCase turns a code name such as DeadlineExceeded into deadline_exceeded.
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
