package logging

import (
	"context"
	"log/slog"
)

// sessionHandler stamps records with the scan session identifier so logs from
// the frame path, the lookup worker and the HTTP handlers can be correlated.
// The innermost stamp yields to an outer one, so re-binding a logger to a new
// session never produces two session_id fields.
type sessionHandler struct {
	base      slog.Handler
	sessionID string
}

func (h *sessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionHandler) Handle(ctx context.Context, record slog.Record) error {
	if !recordHasKey(record, FieldSessionID) {
		record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	}
	return h.base.Handle(ctx, record)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionHandler{base: h.base.WithAttrs(attrs), sessionID: h.sessionID}
}

// WithGroup pins the session id at the top level before opening the group.
func (h *sessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.base.WithAttrs([]slog.Attr{slog.String(FieldSessionID, h.sessionID)}).WithGroup(name)
}

func recordHasKey(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(a slog.Attr) bool {
		found = a.Key == key
		return !found
	})
	return found
}

// WithSession returns a logger whose records all carry sessionID. An empty id
// leaves logger unchanged.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if sessionID == "" {
		return logger
	}
	if h, ok := logger.Handler().(*sessionHandler); ok {
		if h.sessionID == sessionID {
			return logger
		}
		return slog.New(&sessionHandler{base: h.base, sessionID: sessionID})
	}
	return slog.New(&sessionHandler{base: logger.Handler(), sessionID: sessionID})
}
