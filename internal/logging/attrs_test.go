package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPayloadShortensLongValues(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "short", payload: "HW000123", want: "HW000123"},
		{name: "limit", payload: strings.Repeat("a", maxPayloadRunes), want: strings.Repeat("a", maxPayloadRunes)},
		{name: "long", payload: strings.Repeat("b", maxPayloadRunes+4), want: strings.Repeat("b", maxPayloadRunes) + "…(+4)"},
		{name: "multibyte", payload: strings.Repeat("é", maxPayloadRunes+1), want: strings.Repeat("é", maxPayloadRunes) + "…(+1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := Payload(tt.payload)
			if attr.Key != FieldPayload {
				t.Fatalf("key = %q, want %q", attr.Key, FieldPayload)
			}
			if got := attr.Value.String(); got != tt.want {
				t.Fatalf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWarnWithContextFillsMissingFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WarnWithContext(logger, "lookup failed", "lookup_unavailable",
		String(FieldErrorHint, "check inventory backend"),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec[FieldEventType] != "lookup_unavailable" {
		t.Fatalf("event_type = %v", rec[FieldEventType])
	}
	if rec[FieldErrorHint] != "check inventory backend" {
		t.Fatalf("caller hint overwritten: %v", rec[FieldErrorHint])
	}
	if rec[FieldImpact] == nil {
		t.Fatal("expected default impact")
	}
}

func TestJSONHandlerFormatsTimesAndDurations(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, level, false))
	logger.Info("frame processed", Duration("elapsed", 12345678*time.Nanosecond))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ts, _ := rec["ts"].(string)
	if _, err := time.Parse(jsonTimestampLayout, ts); err != nil || !strings.Contains(ts, ".") {
		t.Fatalf("ts %q not in millisecond layout: %v", ts, err)
	}
	if rec["level"] != "info" {
		t.Fatalf("level = %v", rec["level"])
	}
	if rec["elapsed"] != "12ms" {
		t.Fatalf("elapsed = %v", rec["elapsed"])
	}
}

func TestFormatShortDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                        "0s",
		1500 * time.Nanosecond:   "2µs",
		33333 * time.Microsecond: "33ms",
		2345 * time.Millisecond:  "2.3s",
	}
	for in, want := range tests {
		if got := formatShortDuration(in); got != want {
			t.Errorf("formatShortDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
