package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders the human console format: one header line with
// component and session subject, then indented field lines.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	bound     []kv // attrs from WithAttrs, already qualified by their groups
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.bound))
	kvs = append(kvs, h.bound...)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var component, sessionID, mode string
	fields := kvs[:0:0]
	for _, kv := range kvs {
		switch kv.key {
		case FieldComponent:
			component = attrString(kv.value)
		case FieldSessionID:
			sessionID = attrString(kv.value)
		case FieldMode:
			mode = attrString(kv.value)
		default:
			fields = append(fields, kv)
		}
	}

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(fields)*32)
	writeLogHeader(&buf, timestamp, record.Level, component, composeSubject(mode, sessionID), message, h.addSource, record.Source())
	buf.WriteByte('\n')
	if record.Level < slog.LevelInfo {
		writeRawFields(&buf, fields)
	} else {
		writeInfoFields(&buf, fields)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// writeRawFields lists every field verbatim for debug records.
func writeRawFields(buf *bytes.Buffer, fields []kv) {
	for _, kv := range fields {
		fmt.Fprintf(buf, "    %s: %s\n", kv.key, formatValue(kv.value))
	}
}

// writeInfoFields lists the highlighted fields with friendly labels and
// summarizes the rest as a hidden count.
func writeInfoFields(buf *bytes.Buffer, fields []kv) {
	selected, hidden := selectInfoFields(fields, infoAttrLimit, false)
	for _, field := range selected {
		fmt.Fprintf(buf, "    - %s: %s\n", field.label, field.value)
	}
	switch {
	case hidden == 1:
		buf.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		fmt.Fprintf(buf, "    + %d more fields hidden\n", hidden)
	}
}

func writeLogHeader(buf *bytes.Buffer, ts time.Time, level slog.Level, component, subject, message string, addSource bool, src *slog.Source) {
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(level))
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	if subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	buf.WriteString(" – ")
	buf.WriteString(message)
	if addSource && src != nil {
		buf.WriteString(" [")
		buf.WriteString(filepath.Base(src.File))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(src.Line))
		buf.WriteByte(']')
	}
}

// composeSubject renders "Camera · 1a2b3c4d" from mode and session id.
func composeSubject(mode, sessionID string) string {
	mode = strings.TrimSpace(mode)
	sessionID = strings.TrimSpace(sessionID)
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	parts := make([]string, 0, 2)
	if mode != "" {
		parts = append(parts, capitalizeASCII(mode))
	}
	if sessionID != "" {
		parts = append(parts, sessionID)
	}
	return strings.Join(parts, " · ")
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.bound = make([]kv, len(h.bound), len(h.bound)+len(attrs))
	copy(clone.bound, h.bound)
	for _, attr := range attrs {
		flattenAttr(&clone.bound, h.groups, attr)
	}
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = appendPrefix(h.groups, name)
	return &clone
}

type kv struct {
	key   string
	value slog.Value
}

func dedupeKVsByKey(attrs []kv) []kv {
	if len(attrs) < 2 {
		return attrs
	}
	positions := make(map[string]int, len(attrs))
	deduped := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if pos, ok := positions[attr.key]; ok {
			deduped[pos].value = attr.value
			continue
		}
		positions[attr.key] = len(deduped)
		deduped = append(deduped, attr)
	}
	return deduped
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	switch attr.Value.Kind() {
	case slog.KindGroup:
		values := attr.Value.Group()
		nextPrefix := prefix
		if attr.Key != "" {
			nextPrefix = appendPrefix(prefix, attr.Key)
		}
		for _, value := range values {
			flattenAttr(dst, nextPrefix, value)
		}
	default:
		key := attr.Key
		if len(prefix) > 0 {
			if key != "" {
				key = strings.Join(append(prefix, key), ".")
			} else {
				key = strings.Join(prefix, ".")
			}
		}
		if key == "" {
			key = attr.Key
		}
		*dst = append(*dst, kv{key: key, value: attr.Value})
	}
}

func appendPrefix(prefix []string, value string) []string {
	if len(prefix) == 0 {
		return []string{value}
	}
	out := make([]string, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = value
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
