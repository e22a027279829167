package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to every handler whose level admits it. The
// daemon uses it to mirror the console log into the diagnostic JSON log.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = fn(h)
	}
	return next
}

// TeeLogger returns a logger that writes to base and to every extra handler.
// Nil entries are ignored; a nil base contributes nothing.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	var handlers teeHandler
	if base != nil {
		handlers = append(handlers, base.Handler())
	}
	for _, h := range extra {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	switch len(handlers) {
	case 0:
		return NewNop()
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(handlers)
	}
}
