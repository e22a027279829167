package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"shelfscan/internal/api"
	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/config"
	"shelfscan/internal/decoder"
	"shelfscan/internal/deps"
	"shelfscan/internal/frame"
	"shelfscan/internal/inventory"
	"shelfscan/internal/logging"
	"shelfscan/internal/lookup"
	"shelfscan/internal/preflight"
	"shelfscan/internal/session"
)

var (
	// ErrHistoryUnavailable is returned when no local store records history.
	ErrHistoryUnavailable = errors.New("scan history is not recorded")
	// ErrPushUnsupported is returned when frames are pushed to a daemon whose
	// camera source is not "push".
	ErrPushUnsupported = errors.New("camera source does not accept pushed frames")
)

// Dependencies are the collaborators a Daemon drives.
type Dependencies struct {
	Session    *session.Session
	Decoder    *decoder.Composite
	Repository inventory.Repository
	// Store records scan history. Nil when history is disabled.
	Store  *inventory.Store
	Source camera.Source
}

// Daemon coordinates the scan session and API server and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	deps     Dependencies
	settings session.Settings

	lockPath string
	lock     *flock.Flock
	hotplug  *camera.HotplugMonitor
	api      *apiServer

	running atomic.Bool
	mu      sync.Mutex
	started time.Time
	checks  []preflight.Result
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	LockFilePath   string
	APIAddress     string
	Inventory      string
	EnabledFormats []string
	SessionActive  bool
	Mode           session.Mode
	SessionID      string
	State          session.State
	Settings       session.Settings
	Dependencies   []deps.Status
	Checks         []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, d Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || d.Session == nil || d.Decoder == nil {
		return nil, errors.New("daemon requires config, session, and decoder")
	}
	lockPath := cfg.DaemonLockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		deps:     d,
		settings: session.SettingsFromConfig(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks and starts the API
// server, hotplug monitor and history pruning.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shelfscan daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	checks := preflight.RunAll(runCtx, d.cfg)
	for _, failed := range preflight.Failed(checks) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "run shelfscan status for details"),
		)
	}

	if d.cfg.Camera.Hotplug && d.cfg.Camera.Source == config.SourceFFmpeg {
		d.hotplug = camera.NewHotplugMonitor(d.cfg.Camera.Device, d.logger, d.handleHotplug)
		_ = d.hotplug.Start(runCtx)
	}

	d.mu.Lock()
	d.api = srv
	d.cancel = cancel
	d.started = time.Now()
	d.checks = checks
	d.mu.Unlock()

	if d.deps.Store != nil && d.cfg.HistoryRetention() > 0 {
		d.wg.Add(1)
		go d.pruneLoop(runCtx)
	}

	d.running.Store(true)
	d.logger.Info("shelfscan daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", srv.address()),
	)
	return nil
}

// Stop ends the scan session, stops background work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, srv := d.cancel, d.api
	d.cancel, d.api = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	srv.stop()
	d.hotplug.Stop()
	d.hotplug = nil
	if err := d.deps.Session.Stop(); err != nil {
		d.logger.Warn("session stop failed", logging.Error(err))
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shelfscan daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon. Collaborators passed to New
// are owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// APIAddress returns the address the API server listens on, or "" when stopped.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	snap := d.deps.Session.Latest()
	statuses := deps.CheckSystem(d.cfg)
	statuses = append(statuses, deps.DecoderStatuses(d.deps.Decoder.Capabilities())...)

	d.mu.Lock()
	started, checks := d.started, d.checks
	d.mu.Unlock()

	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      started,
		LockFilePath:   d.lockPath,
		APIAddress:     d.APIAddress(),
		Inventory:      d.inventoryDescription(),
		EnabledFormats: d.deps.Decoder.Enabled().Strings(),
		SessionActive:  d.deps.Session.Active(),
		Mode:           d.deps.Session.Mode(),
		SessionID:      snap.SessionID,
		State:          snap.State,
		Settings:       d.deps.Session.CurrentSettings(),
		Dependencies:   statuses,
		Checks:         checks,
	}
}

func (d *Daemon) inventoryDescription() string {
	switch d.cfg.Inventory.Backend {
	case config.BackendHTTP:
		return "http " + d.cfg.Inventory.BaseURL
	default:
		return "sqlite " + d.cfg.Inventory.DatabasePath
	}
}

// StartSession starts a session with the configured settings and the
// non-zero overrides in req. A running session is replaced.
func (d *Daemon) StartSession(ctx context.Context, req api.StartSessionRequest) (session.Settings, error) {
	mode, ok := session.ParseMode(strings.TrimSpace(strings.ToLower(req.Mode)))
	if !ok {
		return session.Settings{}, barcode.InvalidInputf("unknown session mode %q", req.Mode)
	}
	settings := d.settings
	if req.FrameSkip > 0 {
		settings.FrameSkip = req.FrameSkip
	}
	if req.StreakThreshold > 0 {
		settings.StreakThreshold = req.StreakThreshold
	}
	if req.CooldownSeconds != nil {
		if *req.CooldownSeconds < 0 {
			return session.Settings{}, barcode.InvalidInputf("cooldown must not be negative")
		}
		settings.Cooldown = time.Duration(*req.CooldownSeconds * float64(time.Second))
	}
	if err := d.deps.Session.Start(ctx, mode, settings); err != nil {
		return session.Settings{}, err
	}
	return d.deps.Session.CurrentSettings(), nil
}

// StopSession stops the scan session and releases the camera.
func (d *Daemon) StopSession() error {
	return d.deps.Session.Stop()
}

// Latest returns the latest-result slot.
func (d *Daemon) Latest() session.Snapshot {
	return d.deps.Session.Latest()
}

// PushFrame feeds one externally captured frame into the live session.
func (d *Daemon) PushFrame(f *frame.Frame) error {
	push, ok := d.deps.Source.(*camera.PushSource)
	if !ok {
		return ErrPushUnsupported
	}
	return push.Push(f)
}

// Scan decodes every code in a still image and resolves each one.
func (d *Daemon) Scan(ctx context.Context, img *frame.Frame) ([]barcode.DecodedCode, []lookup.Result, error) {
	codes, err := d.deps.Session.SubmitImage(img)
	if err != nil {
		return nil, nil, err
	}
	results := d.deps.Session.ResolveCodes(ctx, codes)
	return codes, results, nil
}

// LookupCode resolves a code typed or pasted by a user. No scan history is recorded.
func (d *Daemon) LookupCode(ctx context.Context, code string) (lookup.Result, error) {
	payload := inventory.NormalizePayload(code)
	if payload == "" {
		return lookup.Result{}, barcode.InvalidInputf("code is empty")
	}
	ev := barcode.ScanEvent{ID: uuid.NewString(), Payload: payload, EmittedAt: time.Now()}
	adapter := lookup.New(d.deps.Repository, lookup.Options{Timeout: d.cfg.LookupTimeout(), Logger: d.logger})
	return adapter.Resolve(ctx, ev)
}

// History returns recent scan history, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]inventory.ScanRecord, error) {
	if d.deps.Store == nil {
		return nil, ErrHistoryUnavailable
	}
	return d.deps.Store.History(ctx, limit)
}

func (d *Daemon) handleHotplug(_ context.Context, action camera.HotplugAction, device string) {
	switch action {
	case camera.HotplugRemove:
		d.deps.Session.DeviceRemoved(device)
	case camera.HotplugAdd:
		d.logger.Info("camera connected; start a session to resume scanning",
			logging.String(logging.FieldEventType, "camera_connected"),
			logging.String("device", device),
		)
	}
}
