package config

const (
	defaultStateDir             = "~/.local/share/shelfscan"
	defaultLogDir               = "~/.local/share/shelfscan/logs"
	defaultDatabasePath         = "~/.local/share/shelfscan/inventory.db"
	defaultAPIBind              = "127.0.0.1:7491"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultFrameSkip            = 5
	defaultStreakThreshold      = 3
	defaultCooldownSeconds      = 3.0
	defaultMinDimension         = 32
	defaultWindowSeconds        = 2.0
	defaultLookupQueue          = 16
	defaultCameraDevice         = "/dev/video0"
	defaultCameraWidth          = 640
	defaultCameraHeight         = 480
	defaultCameraFPS            = 15
	defaultFFmpegBinary         = "ffmpeg"
	defaultLookupTimeoutSeconds = 5
	defaultHistoryRetentionDays = 90
)

const (
	StabilityConsecutive = "consecutive"
	StabilityWindow      = "window"

	SourceFFmpeg = "ffmpeg"
	SourceReplay = "replay"
	SourcePush   = "push"

	BackendSQLite = "sqlite"
	BackendHTTP   = "http"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Scanner: Scanner{
			FrameSkip:       defaultFrameSkip,
			StreakThreshold: defaultStreakThreshold,
			CooldownSeconds: defaultCooldownSeconds,
			MinWidth:        defaultMinDimension,
			MinHeight:       defaultMinDimension,
			RedrawOverlay:   true,
			Stability:       StabilityConsecutive,
			WindowSeconds:   defaultWindowSeconds,
			LookupQueue:     defaultLookupQueue,
		},
		Camera: Camera{
			Source:       SourceFFmpeg,
			Device:       defaultCameraDevice,
			Width:        defaultCameraWidth,
			Height:       defaultCameraHeight,
			FPS:          defaultCameraFPS,
			FFmpegBinary: defaultFFmpegBinary,
			Hotplug:      true,
		},
		Inventory: Inventory{
			Backend:              BackendSQLite,
			DatabasePath:         defaultDatabasePath,
			LookupTimeoutSeconds: defaultLookupTimeoutSeconds,
			RecordHistory:        true,
			HistoryRetentionDays: defaultHistoryRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
