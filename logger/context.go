package logger

import (
	"context"
)

// ContextKey is used for context values
type ContextKey string

const (
	// RootKey is the context key for the driver root name
	RootKey ContextKey = "root"
	// ResourceIDKey is the context key for a tracked resource id
	ResourceIDKey ContextKey = "resource_id"
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
)

// WithContextValue adds a value to the context for logging
func WithContextValue(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// ExtractContextValues extracts logging-relevant values from context
func ExtractContextValues(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var args []any

	if root, ok := ctx.Value(RootKey).(string); ok {
		args = append(args, "root", root)
	}

	if id, ok := ctx.Value(ResourceIDKey).(string); ok {
		args = append(args, "resource_id", id)
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		args = append(args, "request_id", requestID)
	}

	return args
}
