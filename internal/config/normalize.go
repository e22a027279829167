package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScanner()
	if err := c.normalizeCamera(); err != nil {
		return err
	}
	if err := c.normalizeInventory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SHELFSCAN_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeScanner() {
	c.Scanner.Stability = strings.ToLower(strings.TrimSpace(c.Scanner.Stability))
	if c.Scanner.Stability == "" {
		c.Scanner.Stability = StabilityConsecutive
	}
	if c.Scanner.LookupQueue <= 0 {
		c.Scanner.LookupQueue = defaultLookupQueue
	}
	formats := make([]string, 0, len(c.Scanner.EnabledFormats))
	seen := make(map[string]struct{}, len(c.Scanner.EnabledFormats))
	for _, value := range c.Scanner.EnabledFormats {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	c.Scanner.EnabledFormats = formats
}

func (c *Config) normalizeCamera() error {
	c.Camera.Source = strings.ToLower(strings.TrimSpace(c.Camera.Source))
	if c.Camera.Source == "" {
		c.Camera.Source = SourceFFmpeg
	}
	c.Camera.Device = strings.TrimSpace(c.Camera.Device)
	if c.Camera.Device == "" {
		c.Camera.Device = defaultCameraDevice
	}
	c.Camera.FFmpegBinary = strings.TrimSpace(c.Camera.FFmpegBinary)
	if c.Camera.FFmpegBinary == "" {
		c.Camera.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Camera.ReplayDir) != "" {
		var err error
		if c.Camera.ReplayDir, err = expandPath(c.Camera.ReplayDir); err != nil {
			return fmt.Errorf("camera.replay_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeInventory() error {
	c.Inventory.Backend = strings.ToLower(strings.TrimSpace(c.Inventory.Backend))
	if c.Inventory.Backend == "" {
		c.Inventory.Backend = BackendSQLite
	}
	if strings.TrimSpace(c.Inventory.DatabasePath) == "" {
		c.Inventory.DatabasePath = defaultDatabasePath
	}
	var err error
	if c.Inventory.DatabasePath, err = expandPath(c.Inventory.DatabasePath); err != nil {
		return fmt.Errorf("inventory.database_path: %w", err)
	}
	c.Inventory.BaseURL = strings.TrimRight(strings.TrimSpace(c.Inventory.BaseURL), "/")
	c.Inventory.APIKey = strings.TrimSpace(c.Inventory.APIKey)
	if c.Inventory.APIKey == "" {
		if value, ok := os.LookupEnv("SHELFSCAN_INVENTORY_API_KEY"); ok {
			c.Inventory.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Inventory.LookupTimeoutSeconds <= 0 {
		c.Inventory.LookupTimeoutSeconds = defaultLookupTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
