package logging

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

var infoHighlightKeys = []string{
	FieldEventType,
	FieldCodeFormat,
	FieldPayload,
	"lookup_status",
	"item_name",
	"item_location",
	"device",
	"source",
	"codes",
	"events",
	"formats",
	"family",
	"error",
	FieldErrorHint,
	FieldImpact,
	"reason",
}

// selectInfoFields returns formatted info-level fields and a count of hidden entries.
// limit=0 means no limit. includeDebug controls whether debug-only keys are allowed.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	if limit < 0 {
		limit = 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0

	accept := func(idx int) {
		attr := attrs[idx]
		used[idx] = true
		if skipInfoKey(attr.key) {
			return
		}
		if !includeDebug && isDebugOnlyKey(attr.key) {
			hidden++
			return
		}
		val := formatValueForKey(attr.key, attr.value)
		if !includeDebug && shouldHideInfoValue(attr.key, val) {
			hidden++
			return
		}
		if limit > 0 && len(result) >= limit {
			hidden++
			return
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: val})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if used[idx] || attr.key != key {
				continue
			}
			accept(idx)
			break
		}
	}
	for idx := range attrs {
		if !used[idx] {
			accept(idx)
		}
	}
	return result, hidden
}

// formatValueForKey applies friendlier formatting based on the key name.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch {
	case v.Kind() == slog.KindDuration:
		return formatDurationHuman(v.Duration())
	case isPercentKey(key) && v.Kind() == slog.KindFloat64:
		return fmt.Sprintf("%.1f%%", v.Float64())
	case v.Kind() == slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	value := formatValue(v)
	if key == "error" {
		value = truncateErrorValue(value)
	}
	return value
}

func formatDurationHuman(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func isPercentKey(key string) bool {
	return strings.HasSuffix(key, "_percent")
}

func truncateErrorValue(value string) string {
	value = strings.TrimSpace(value)
	const maxLen = 200
	if len(value) > maxLen {
		value = value[:maxLen] + "…"
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldSessionID, FieldMode, FieldComponent:
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	if key == "" {
		return true
	}
	switch key {
	case FieldCorrelationID, FieldEventID, "seq", "raw_bytes", "polygon":
		return true
	}
	if strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir") {
		return true
	}
	return false
}

func shouldHideInfoValue(key, value string) bool {
	switch key {
	case "error", FieldPayload, FieldErrorHint:
		return false
	}
	return len(value) > 120
}

func displayLabel(key string) string {
	switch key {
	case FieldEventType:
		return "Event"
	case FieldImpact:
		return "Impact"
	case FieldErrorHint:
		return "Hint"
	case FieldCodeFormat:
		return "Format"
	case FieldPayload:
		return "Payload"
	case "lookup_status":
		return "Lookup"
	case "item_name":
		return "Item"
	case "item_location":
		return "Location"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	if key == "" {
		return ""
	}
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	if len(parts) == 0 {
		return strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
	}
	for i, part := range parts {
		parts[i] = capitalizeASCII(part)
	}
	return strings.Join(parts, " ")
}

func capitalizeASCII(value string) string {
	switch len(value) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(value)
	default:
		lower := strings.ToLower(value)
		return strings.ToUpper(lower[:1]) + lower[1:]
	}
}
