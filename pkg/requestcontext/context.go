// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	signer := requestcontext.Signer(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithSigner(ctx, signer)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"timevault/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	signerKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeySigner      = signerKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Signer retrieves the authenticated signer identity from the context.
// Returns the zero address if no signer is set.
func Signer(ctx context.Context) domain.Address {
	if signer, ok := ctx.Value(ContextKeySigner).(domain.Address); ok {
		return signer
	}
	return domain.Address{}
}

// WithSigner injects an authenticated signer identity into the context.
func WithSigner(ctx context.Context, signer domain.Address) context.Context {
	return context.WithValue(ctx, ContextKeySigner, signer)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped ledger time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests).
// Every validation and every stored timestamp inside one operation observes
// this single instant, so a record never straddles two clock readings.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Replaying operations at a fixed ledger time
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
