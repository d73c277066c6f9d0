// Package context carries request-scoped correlation values for logs and traces.
package context

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

// NewRequestID mints a lexically time-ordered id for requests that arrive
// without one.
func NewRequestID() string {
	return ulid.Make().String()
}

// WithRequestID stores the request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithActor stores the acting principal on the context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if actorType == "" && actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor{kind: actorType, id: actorID})
}

// ActorFromContext returns the acting principal type and id.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.kind, value.id
}
