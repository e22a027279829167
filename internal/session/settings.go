package session

import (
	"time"

	"shelfscan/internal/config"
	"shelfscan/internal/stabilizer"
)

// Mode selects live camera scanning or single image scanning.
type Mode string

const (
	ModeLive        Mode = "live"
	ModeSingleImage Mode = "single_image"
)

// ParseMode accepts "live", "single_image" and the shorthand "image".
func ParseMode(value string) (Mode, bool) {
	switch value {
	case "", string(ModeLive):
		return ModeLive, true
	case string(ModeSingleImage), "image", "single":
		return ModeSingleImage, true
	}
	return "", false
}

// Settings are the tunables applied when a session starts.
type Settings struct {
	FrameSkip       int
	StreakThreshold int
	Cooldown        time.Duration
	Policy          stabilizer.Policy
	Window          time.Duration
	RedrawOverlay   bool
	LookupQueue     int
}

// SettingsFromConfig maps the scanner section onto Settings. A nil config
// yields the default scanner settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return Settings{
		FrameSkip:       cfg.Scanner.FrameSkip,
		StreakThreshold: cfg.Scanner.StreakThreshold,
		Cooldown:        cfg.Cooldown(),
		Policy:          stabilizer.Policy(cfg.Scanner.Stability),
		Window:          cfg.StabilityWindow(),
		RedrawOverlay:   cfg.Scanner.RedrawOverlay,
		LookupQueue:     cfg.Scanner.LookupQueue,
	}
}

func (s Settings) withDefaults() Settings {
	if s.LookupQueue <= 0 {
		s.LookupQueue = 16
	}
	return s
}
