package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shelfscan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Inventory.DatabasePath = filepath.Join(base, "state", "inventory.db")
	cfgVal.Camera.Source = config.SourceReplay
	cfgVal.Camera.ReplayDir = filepath.Join(base, "frames")
	cfgVal.Camera.Hotplug = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the bearer token required by the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithScanner overrides the stabilization knobs.
func WithScanner(frameSkip, threshold int, cooldownSeconds float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scanner.FrameSkip = frameSkip
		b.cfg.Scanner.StreakThreshold = threshold
		b.cfg.Scanner.CooldownSeconds = cooldownSeconds
	}
}

// WithHTTPInventory points lookups at a remote inventory service.
func WithHTTPInventory(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Inventory.Backend = config.BackendHTTP
		b.cfg.Inventory.BaseURL = baseURL
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
