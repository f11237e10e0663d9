// Package requestid carries the correlation ID of an HTTP request through
// contexts, including the background tasks the request schedules.
package requestid

import "context"

// Header is the HTTP header clients may use to supply their own ID.
const Header = "X-Request-ID"

type contextKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the ID stored in ctx, or "" when there is none.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
