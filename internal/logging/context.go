package logging

import (
	"context"

	"go.uber.org/zap"
)

type contextKey int

const requestIDKey contextKey = iota

// WithRequestID returns a context carrying a request id that every log call
// made with this context will include.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextFields extracts log fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	if id := RequestID(ctx); id != "" {
		return []zap.Field{zap.String("request_id", id)}
	}
	return nil
}
