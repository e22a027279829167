package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID is the standardized structured logging key for scan session identifiers.
	FieldSessionID = "session_id"
	// FieldEventID is the standardized structured logging key for scan event identifiers.
	FieldEventID = "event_id"
	// FieldMode is the standardized structured logging key for the scanning mode (camera or upload).
	FieldMode = "mode"
	// FieldCodeFormat is the standardized structured logging key for symbology tags.
	FieldCodeFormat = "code_format"
	// FieldPayload is the standardized structured logging key for decoded payloads.
	FieldPayload = "payload"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (capability_missing, lookup_unavailable, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step an operator should take.
	FieldErrorHint = "error_hint"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	modeKey      contextKey = "mode"
	requestIDKey contextKey = "request_id"
)

// WithSessionID attaches a scan session identifier to ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, strings.TrimSpace(id))
}

// SessionIDFromContext returns the scan session identifier, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, sessionIDKey)
}

// WithMode attaches the scanning mode to ctx.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, modeKey, strings.TrimSpace(mode))
}

// ModeFromContext returns the scanning mode, if any.
func ModeFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, modeKey)
}

// WithRequestID attaches an API request identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(id))
}

// RequestIDFromContext returns the API request identifier, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFromContext(ctx, requestIDKey)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if mode, ok := ModeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldMode, mode))
	}
	if rid, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
