package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"shelfscan/internal/api"
	"shelfscan/internal/config"
	"shelfscan/internal/daemon"
	"shelfscan/internal/decoder"
	"shelfscan/internal/deps"
	"shelfscan/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
	// AutoStart starts a session in this mode once the daemon is up.
	AutoStart string
}

// Run starts the shelfscan daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("shelfscan-%s.log", runID))

	logger, err := logging.New(logging.Options{
		Level:       opts.LogLevel,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		logger = attachDiagnosticLog(logger, cfg, runID)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update shelfscan.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "shelfscan-*.log", Keep: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "shelfscan-*.log"},
	)
	pidPath := PIDFilePath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	components, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build scanner components", logging.Error(err))
		return err
	}
	defer components.Close()
	logDependencySnapshot(logger, cfg, components.Decoder)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Session:    components.Session,
		Decoder:    components.Decoder,
		Repository: components.Repository,
		Store:      components.Store,
		Source:     components.Source,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, the api_bind address and the state directory"),
			logging.String(logging.FieldImpact, "scanner is not reachable"),
		)
		return err
	}

	if mode := strings.TrimSpace(opts.AutoStart); mode != "" {
		if _, err := d.StartSession(signalCtx, api.StartSessionRequest{Mode: mode}); err != nil {
			logging.WarnWithContext(logger, "automatic session start failed", "session_autostart_failed",
				logging.String(logging.FieldMode, mode),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "start the session with shelfscan start once the camera is ready"),
			)
		}
	}

	<-signalCtx.Done()
	logger.Info("shelfscan daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// attachDiagnosticLog tees a debug-level JSON log into log_dir/debug.
func attachDiagnosticLog(logger *slog.Logger, cfg *config.Config, runID string) *slog.Logger {
	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to create debug log directory: %v\n", err)
		return logger
	}
	debugLogPath := filepath.Join(debugDir, fmt.Sprintf("shelfscan-%s.log", runID))
	debugLogger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		Outputs:     []string{debugLogPath},
		Development: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", err)
		return logger
	}
	logger = logging.TeeLogger(logger, debugLogger.Handler())
	if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update debug/shelfscan.log link: %v\n", err)
	}
	logger.Info("diagnostic mode enabled",
		logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
		logging.String("diagnostic_id", uuid.NewString()),
		logging.String("debug_log_path", debugLogPath),
	)
	return logger
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "shelfscan.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// PIDFilePath is where a running daemon records its process id.
func PIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "shelfscan.pid")
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config, dec *decoder.Composite) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.FFmpegBinary()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("camera_source", cfg.Camera.Source),
		logging.String("camera_device", cfg.Camera.Device),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.String("inventory_backend", cfg.Inventory.Backend),
		logging.Bool("inventory_key_present", strings.TrimSpace(cfg.Inventory.APIKey) != ""),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
	}
	if dec != nil {
		attrs = append(attrs, logging.String("enabled_formats", strings.Join(dec.Enabled().Strings(), ",")))
		for _, status := range deps.MissingRequired(deps.DecoderStatuses(dec.Capabilities())) {
			attrs = append(attrs, logging.String("missing_"+strings.TrimPrefix(status.Name, "decoder:"), status.Detail))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
