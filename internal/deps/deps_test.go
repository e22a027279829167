package deps

import (
	"os"
	"path/filepath"
	"testing"

	"shelfscan/internal/barcode"
	"shelfscan/internal/config"
	"shelfscan/internal/decoder"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for empty command: %#v", results[2])
	}
}

func TestRequirementsFollowCameraSource(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.Source = config.SourceFFmpeg
	cfg.Camera.FFmpegBinary = "clearly-not-present-ffmpeg"

	statuses := CheckSystem(&cfg)
	if len(statuses) != 1 || statuses[0].Optional {
		t.Fatalf("ffmpeg should be required for the ffmpeg source: %#v", statuses)
	}
	if len(MissingRequired(statuses)) != 1 {
		t.Fatal("missing ffmpeg should block the ffmpeg source")
	}

	cfg.Camera.Source = config.SourceReplay
	statuses = CheckSystem(&cfg)
	if !statuses[0].Optional || len(MissingRequired(statuses)) != 0 {
		t.Fatalf("ffmpeg should be optional for replay: %#v", statuses)
	}
}

func TestDecoderStatuses(t *testing.T) {
	dec := decoder.New(decoder.Options{Formats: barcode.NewFormatSet(barcode.FormatQR, barcode.FormatPDF417)})
	statuses := DecoderStatuses(dec.Capabilities())

	byName := map[string]Status{}
	for _, s := range statuses {
		byName[s.Name] = s
	}
	qr, ok := byName["decoder:qr"]
	if !ok || !qr.Available || qr.Optional {
		t.Fatalf("qr status = %#v", qr)
	}
	pdf := byName["decoder:pdf417"]
	if pdf.Available || pdf.Optional || pdf.Detail == "" {
		t.Fatalf("pdf417 should be a missing required family: %#v", pdf)
	}
	linear := byName["decoder:linear"]
	if !linear.Optional || linear.Detail == "" {
		t.Fatalf("linear should be reported as not requested: %#v", linear)
	}
	if got := MissingRequired(statuses); len(got) != 1 || got[0].Name != "decoder:pdf417" {
		t.Fatalf("MissingRequired = %#v", got)
	}
}
