package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type sessionCtxKey struct{}
type requestCtxKey struct{}

// WithSessionID stores the chat session id on the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext returns the session id, or "" if unset.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}

// WithRequestID stores the HTTP request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id, or "" if unset.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation fields from the context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session_id", sessionID))
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	return fields
}
