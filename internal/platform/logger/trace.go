package logger

import "context"

const traceIDKey contextKey = iota + 100

// WithTraceID returns a new context carrying the given trace ID.
// The trace ID follows a request from the HTTP edge through the task
// queue into the worker's logs.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext retrieves the trace ID stored in the context, or an
// empty string when the context carries none.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}
