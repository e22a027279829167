package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"shelfscan/internal/barcode"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateInventory(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScanner() error {
	if err := ensurePositiveMap(map[string]int{
		"scanner.frame_skip":       c.Scanner.FrameSkip,
		"scanner.streak_threshold": c.Scanner.StreakThreshold,
		"scanner.min_width":        c.Scanner.MinWidth,
		"scanner.min_height":       c.Scanner.MinHeight,
		"scanner.lookup_queue":     c.Scanner.LookupQueue,
	}); err != nil {
		return err
	}
	if c.Scanner.CooldownSeconds < 0 {
		return errors.New("scanner.cooldown_seconds must be >= 0")
	}
	switch c.Scanner.Stability {
	case StabilityConsecutive:
	case StabilityWindow:
		if c.Scanner.WindowSeconds <= 0 {
			return errors.New("scanner.window_seconds must be positive when scanner.stability is \"window\"")
		}
	default:
		return fmt.Errorf("scanner.stability: unsupported value %q (want consecutive or window)", c.Scanner.Stability)
	}
	if _, err := c.EnabledFormats(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCamera() error {
	switch c.Camera.Source {
	case SourceFFmpeg:
		if err := ensurePositiveMap(map[string]int{
			"camera.width":  c.Camera.Width,
			"camera.height": c.Camera.Height,
			"camera.fps":    c.Camera.FPS,
		}); err != nil {
			return err
		}
	case SourceReplay:
		if strings.TrimSpace(c.Camera.ReplayDir) == "" {
			return errors.New("camera.replay_dir must be set when camera.source is \"replay\"")
		}
		if c.Camera.FPS <= 0 {
			return errors.New("camera.fps must be positive")
		}
	case SourcePush:
	default:
		return fmt.Errorf("camera.source: unsupported value %q (want ffmpeg, replay or push)", c.Camera.Source)
	}
	return nil
}

func (c *Config) validateInventory() error {
	switch c.Inventory.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Inventory.DatabasePath) == "" {
			return errors.New("inventory.database_path must be set when inventory.backend is \"sqlite\"")
		}
	case BackendHTTP:
		if c.Inventory.BaseURL == "" {
			return errors.New("inventory.base_url must be set when inventory.backend is \"http\"")
		}
		parsed, err := url.Parse(c.Inventory.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("inventory.base_url: invalid URL %q", c.Inventory.BaseURL)
		}
	default:
		return fmt.Errorf("inventory.backend: unsupported value %q (want sqlite or http)", c.Inventory.Backend)
	}
	if c.Inventory.HistoryRetentionDays < 0 {
		return errors.New("inventory.history_retention_days must be zero or positive")
	}
	return nil
}

// EnabledFormats parses scanner.enabled_formats. An empty list enables every format.
func (c *Config) EnabledFormats() (barcode.FormatSet, error) {
	set, err := barcode.ParseFormatSet(c.Scanner.EnabledFormats)
	if err != nil {
		return nil, fmt.Errorf("scanner.enabled_formats: %w", err)
	}
	return set, nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
