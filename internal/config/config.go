package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Scanner contains the frame pipeline tuning knobs.
type Scanner struct {
	FrameSkip       int      `toml:"frame_skip"`
	StreakThreshold int      `toml:"streak_threshold"`
	CooldownSeconds float64  `toml:"cooldown_seconds"`
	EnabledFormats  []string `toml:"enabled_formats"`
	MinWidth        int      `toml:"min_width"`
	MinHeight       int      `toml:"min_height"`
	TryHarder       bool     `toml:"try_harder"`
	RedrawOverlay   bool     `toml:"redraw_overlay"`
	// Stability is "consecutive" (misses reset the streak) or "window"
	// (observations are counted inside WindowSeconds).
	Stability     string  `toml:"stability"`
	WindowSeconds float64 `toml:"window_seconds"`
	LookupQueue   int     `toml:"lookup_queue"`
}

// Camera contains frame source configuration.
type Camera struct {
	Source       string `toml:"source"`
	Device       string `toml:"device"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	FPS          int    `toml:"fps"`
	ReplayDir    string `toml:"replay_dir"`
	ReplayLoop   bool   `toml:"replay_loop"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Hotplug      bool   `toml:"hotplug"`
}

// Inventory contains lookup repository configuration.
type Inventory struct {
	Backend              string `toml:"backend"`
	DatabasePath         string `toml:"database_path"`
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	LookupTimeoutSeconds int    `toml:"lookup_timeout_seconds"`
	RecordHistory        bool   `toml:"record_history"`
	HistoryRetentionDays int    `toml:"history_retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for shelfscan.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories, API bind address and token
//   - Scanner: frame skip, stabilization and decoder selection
//   - Camera: live or replay frame source
//   - Inventory: lookup repository backend
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Scanner   Scanner   `toml:"scanner"`
	Camera    Camera    `toml:"camera"`
	Inventory Inventory `toml:"inventory"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelfscan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelfscan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Inventory.Backend == BackendSQLite && c.Inventory.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(c.Inventory.DatabasePath), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used by the live camera source.
func (c *Config) FFmpegBinary() string {
	if binary := strings.TrimSpace(c.Camera.FFmpegBinary); binary != "" {
		return binary
	}
	return defaultFFmpegBinary
}

// Cooldown returns the per-payload suppression window.
func (c *Config) Cooldown() time.Duration {
	return secondsToDuration(c.Scanner.CooldownSeconds)
}

// StabilityWindow returns the rolling window used by the "window" stability policy.
func (c *Config) StabilityWindow() time.Duration {
	return secondsToDuration(c.Scanner.WindowSeconds)
}

// LookupTimeout bounds a single repository lookup.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.Inventory.LookupTimeoutSeconds) * time.Second
}

// HistoryRetention is how long scan history rows are kept. Zero keeps them forever.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Inventory.HistoryRetentionDays) * 24 * time.Hour
}

// FrameInterval is the delay between frames for sources that pace themselves.
func (c *Config) FrameInterval() time.Duration {
	if c.Camera.FPS <= 0 {
		return time.Second / defaultCameraFPS
	}
	return time.Second / time.Duration(c.Camera.FPS)
}

// DaemonLockPath is the single-instance lock held by a running daemon.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, "shelfscan.lock")
}

// DeviceLockPath is the per-device lock file used while a camera is acquired.
func (c *Config) DeviceLockPath(device string) string {
	name := strings.Trim(strings.ReplaceAll(device, string(filepath.Separator), "_"), "_")
	if name == "" {
		name = "camera"
	}
	return filepath.Join(c.Paths.StateDir, "locks", name+".lock")
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
