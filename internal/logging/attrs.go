package logging

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func Uint64(key string, value uint64) Attr { return slog.Uint64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// maxPayloadRunes bounds decoded payloads in log lines. Data Matrix and PDF417
// symbols can carry kilobytes.
const maxPayloadRunes = 96

// Payload records a decoded payload under FieldPayload, shortened when long.
func Payload(payload string) Attr {
	n := utf8.RuneCountInString(payload)
	if n <= maxPayloadRunes {
		return slog.String(FieldPayload, payload)
	}
	runes := []rune(payload)
	return slog.String(FieldPayload, fmt.Sprintf("%s…(+%d)", string(runes[:maxPayloadRunes]), n-maxPayloadRunes))
}

// CodeFormat records a symbology tag under FieldCodeFormat.
func CodeFormat[T ~string](format T) Attr {
	return slog.String(FieldCodeFormat, string(format))
}

// Args converts attrs into the variadic form slog.Logger methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with FieldComponent. A nil logger yields a no-op base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// FieldImpact is the standardized key for user-facing consequence of a warning.
const FieldImpact = "impact"

// withDefaults appends key=value for every key absent from attrs.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, def := range defaults {
		present := false
		for _, a := range attrs {
			if a.Key == def.Key {
				present = true
				break
			}
		}
		if !present {
			attrs = append(attrs, def)
		}
	}
	return attrs
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact, so operators see the cause, the consequence and a next step.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check logs for details"),
		String(FieldImpact, "scanning continues with reduced function"),
	)
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error that always carries event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check logs for details"),
	)
	logger.Error(msg, Args(attrs...)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
