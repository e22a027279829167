package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/decoder"
	"shelfscan/internal/frame"
	"shelfscan/internal/frameproc"
	"shelfscan/internal/logging"
	"shelfscan/internal/lookup"
	"shelfscan/internal/overlay"
	"shelfscan/internal/stabilizer"
)

// ErrNoSource is returned when a live session starts without a camera source.
var ErrNoSource = errors.New("no camera source configured")

// Options wires a Session to its collaborators.
type Options struct {
	Decoder decoder.Decoder
	Lookup  *lookup.Adapter
	// Source supplies frames in live mode.
	Source camera.Source
	// LockPath maps a device to its lock file. Nil disables device locking.
	LockPath func(device string) string
	Clock    func() time.Time
	NewID    func() string
	Logger   *slog.Logger
}

// Session is one scanning session at a time; Start after Stop begins a new
// one with fresh scanner state.
type Session struct {
	dec      decoder.Decoder
	lookup   *lookup.Adapter
	source   camera.Source
	lockPath func(string) string
	clock    func() time.Time
	newID    func() string
	logger   *slog.Logger

	mu       sync.Mutex
	gen      uint64
	active   bool
	id       string
	mode     Mode
	settings Settings
	proc     *frameproc.Processor
	handle   *camera.Handle
	cancel   context.CancelFunc
	workers  sync.WaitGroup

	slot slot
}

// New constructs an idle session.
func New(opts Options) (*Session, error) {
	if opts.Decoder == nil {
		return nil, errors.New("session requires a decoder")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	s := &Session{
		dec:      opts.Decoder,
		lookup:   opts.Lookup,
		source:   opts.Source,
		lockPath: opts.LockPath,
		clock:    opts.Clock,
		newID:    opts.NewID,
		logger:   logging.NewComponentLogger(opts.Logger, "session"),
	}
	s.slot.end(0, s.clock())
	return s, nil
}

// Start begins a session in mode. A running session is stopped first, so a
// mode change always resets the scanner state. In live mode the camera is
// acquired; if that fails nothing stays acquired and the slot reports the
// camera as unavailable.
func (s *Session) Start(ctx context.Context, mode Mode, settings Settings) error {
	if mode != ModeLive && mode != ModeSingleImage {
		return fmt.Errorf("unknown session mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		_ = s.stopLocked()
	}

	settings = settings.withDefaults()
	s.gen++
	gen := s.gen
	s.id = s.newID()
	s.mode = mode
	s.settings = settings
	logger := logging.WithSession(s.logger, s.id)

	stab := stabilizer.New(stabilizer.Options{
		Threshold: settings.StreakThreshold,
		Cooldown:  settings.Cooldown,
		Policy:    settings.Policy,
		Window:    settings.Window,
		Logger:    logger,
	})
	s.proc = frameproc.New(s.dec, stab, frameproc.Options{
		FrameSkip:     settings.FrameSkip,
		RedrawOverlay: settings.RedrawOverlay,
		Clock:         s.clock,
		Logger:        logger,
	})
	s.slot.begin(gen, s.id, mode, s.clock())

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events := make(chan barcode.ScanEvent, settings.LookupQueue)
	s.cancel = cancel
	s.workers.Add(1)
	go s.lookupWorker(workerCtx, gen, s.id, events, logger)

	if mode == ModeLive {
		if err := s.acquireLocked(ctx, gen, events, logger); err != nil {
			cancel()
			s.cancel = nil
			s.workers.Wait()
			s.slot.end(gen, s.clock())
			return err
		}
	}

	s.active = true
	logger.Info("scan session started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.String(logging.FieldMode, string(mode)),
		logging.Int("frame_skip", settings.FrameSkip),
		logging.Int("streak_threshold", settings.StreakThreshold),
		logging.Duration("cooldown", settings.Cooldown),
	)
	return nil
}

func (s *Session) acquireLocked(ctx context.Context, gen uint64, events chan<- barcode.ScanEvent, logger *slog.Logger) error {
	if s.source == nil {
		s.recordCameraError(gen, &camera.Error{Kind: camera.KindNotFound, Err: ErrNoSource}, logger)
		return ErrNoSource
	}
	lockPath := ""
	if s.lockPath != nil {
		lockPath = s.lockPath(s.source.Device())
	}
	handle, err := camera.Acquire(ctx, s.source, lockPath)
	if err != nil {
		s.recordCameraError(gen, err, logger)
		return err
	}
	if err := handle.Start(s.deliver(gen, s.proc, events, logger)); err != nil {
		_ = handle.Release()
		s.recordCameraError(gen, err, logger)
		return err
	}
	s.handle = handle
	go s.watchCamera(gen, handle, logger)
	return nil
}

// deliver returns the frame callback for generation gen. proc is owned by
// the callback goroutine until Stop has released the camera. The callback
// never takes s.mu: Stop holds it while waiting for callbacks to drain.
func (s *Session) deliver(gen uint64, proc *frameproc.Processor, events chan<- barcode.ScanEvent, logger *slog.Logger) func(*frame.Frame) {
	return func(f *frame.Frame) {
		if !s.current(gen) {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				logging.ErrorWithContext(logger, "frame callback panicked", "frame_callback_panic",
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())),
					logging.String(logging.FieldErrorHint, "report this frame to the developers"),
				)
			}
		}()

		res := proc.OnFrame(f)
		now := s.clock()
		if !s.slot.publishFrame(gen, res.Annotated, res.Codes, res.Admitted, now) {
			return
		}
		for _, ev := range res.Events {
			s.enqueue(gen, events, ev, now, logger)
		}
	}
}

func (s *Session) enqueue(gen uint64, events chan<- barcode.ScanEvent, ev barcode.ScanEvent, now time.Time, logger *slog.Logger) {
	if !s.slot.publishEvent(gen, ev, now) {
		return
	}
	select {
	case events <- ev:
	default:
		s.slot.drop(gen)
		logging.WarnWithContext(logger, "lookup queue full; event dropped", "lookup_queue_full",
			logging.String(logging.FieldEventID, ev.ID),
			logging.Payload(ev.Payload),
			logging.String(logging.FieldErrorHint, "raise scanner.lookup_queue or check inventory latency"),
			logging.String(logging.FieldImpact, "scan shown without lookup result"),
		)
	}
}

func (s *Session) lookupWorker(ctx context.Context, gen uint64, sessionID string, events <-chan barcode.ScanEvent, logger *slog.Logger) {
	defer s.workers.Done()
	adapter := s.lookup
	if adapter != nil {
		adapter = adapter.WithSession(sessionID)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			var res lookup.Result
			if adapter == nil {
				res = lookup.Result{Event: ev, Status: lookup.StatusUnavailable}
			} else {
				res, _ = adapter.Resolve(ctx, ev)
			}
			if ctx.Err() != nil {
				return
			}
			s.slot.resolve(gen, res, s.clock())
			logger.Debug("lookup resolved",
				logging.String(logging.FieldEventID, ev.ID),
				logging.String("status", string(res.Status)),
			)
		}
	}
}

func (s *Session) watchCamera(gen uint64, handle *camera.Handle, logger *slog.Logger) {
	<-handle.Done()
	err := handle.Err()
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.active {
		return
	}
	s.recordCameraError(gen, err, logger)
	_ = s.stopLocked()
}

func (s *Session) recordCameraError(gen uint64, err error, logger *slog.Logger) {
	status := &CameraStatus{Kind: camera.KindFailed, Message: err.Error()}
	var camErr *camera.Error
	if errors.As(err, &camErr) {
		status.Kind = camErr.Kind
		status.Device = camErr.Device
		status.Guidance = camErr.Guidance()
	} else {
		status.Guidance = (&camera.Error{Kind: camera.KindFailed}).Guidance()
	}
	s.slot.cameraFailed(gen, status, s.clock())
	logging.WarnWithContext(logger, "camera unavailable", "camera_unavailable",
		logging.String("kind", string(status.Kind)),
		logging.String("device", status.Device),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, status.Guidance),
		logging.String(logging.FieldImpact, "live scanning stopped"),
	)
}

// Stop ends the session: it stops frame delivery, releases the camera exactly
// once, stops the lookup worker and clears the scanner state. It is safe to
// call while a frame callback is running and when no session is active.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	gen := s.gen
	s.active = false
	// Stale callbacks compare against the bumped generation.
	s.gen++
	var releaseErr error
	if s.handle != nil {
		releaseErr = s.handle.Release()
		s.handle = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.workers.Wait()
	if s.proc != nil {
		s.proc.Reset()
	}
	s.slotEnd(gen)
	logging.WithSession(s.logger, s.id).Info("scan session stopped",
		logging.String(logging.FieldEventType, "session_stopped"),
	)
	if releaseErr != nil {
		return fmt.Errorf("release camera: %w", releaseErr)
	}
	return nil
}

// slotEnd marks the slot inactive while keeping the stopped generation's
// content readable. Later writes from that generation are rejected because
// the slot generation moves with the session.
func (s *Session) slotEnd(stopped uint64) {
	s.slot.mu.Lock()
	defer s.slot.mu.Unlock()
	if s.slot.gen == stopped {
		s.slot.gen = s.gen
	}
	s.slot.active = false
	s.slot.updated = s.clock()
}

func (s *Session) current(gen uint64) bool {
	s.slot.mu.Lock()
	defer s.slot.mu.Unlock()
	return s.slot.gen == gen
}

// Active reports whether a session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Mode returns the mode of the current or last session.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// CurrentSettings returns the settings of the current or last session.
func (s *Session) CurrentSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Latest returns a copy of the latest-result slot.
func (s *Session) Latest() Snapshot {
	return s.slot.snapshot()
}

// DeviceRemoved stops a live session whose camera matches device.
func (s *Session) DeviceRemoved(device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.handle == nil || s.handle.Device() != device {
		return
	}
	gen := s.gen
	logger := logging.WithSession(s.logger, s.id)
	s.recordCameraError(gen, &camera.Error{Kind: camera.KindDisconnected, Device: device, Err: errors.New("device removed")}, logger)
	_ = s.stopLocked()
}

// SubmitImage decodes a single still image. Every code found is returned; no
// stabilization applies. The annotated image becomes the latest frame when a
// single-image session is active.
func (s *Session) SubmitImage(img *frame.Frame) ([]barcode.DecodedCode, error) {
	codes, err := s.dec.Decode(img)
	if err != nil {
		if errors.Is(err, barcode.ErrInvalidInput) {
			return nil, err
		}
		s.logger.Debug("partial decode failure", logging.Error(err), logging.Int("codes", len(codes)))
	}

	s.mu.Lock()
	gen, live := s.gen, s.active && s.mode == ModeSingleImage
	s.mu.Unlock()
	if live {
		annotated := img
		if len(codes) > 0 {
			annotated = overlay.Draw(img, codes)
		}
		s.slot.publishFrame(gen, annotated, codes, true, s.clock())
	}
	return codes, nil
}

// ResolveCodes creates one event per code and resolves each synchronously.
// It is the lookup half of the upload path.
func (s *Session) ResolveCodes(ctx context.Context, codes []barcode.DecodedCode) []lookup.Result {
	now := s.clock()
	events := make([]barcode.ScanEvent, 0, len(codes))
	for _, code := range codes {
		events = append(events, barcode.ScanEvent{
			ID:          s.newID(),
			Payload:     code.Payload,
			Format:      code.Format,
			FirstSeenAt: now,
			EmittedAt:   now,
		})
	}
	if s.lookup == nil {
		out := make([]lookup.Result, len(events))
		for i, ev := range events {
			out[i] = lookup.Result{Event: ev, Status: lookup.StatusUnavailable}
		}
		return out
	}
	results := s.lookup.ResolveAll(ctx, events)

	s.mu.Lock()
	gen, live := s.gen, s.active && s.mode == ModeSingleImage
	s.mu.Unlock()
	if live {
		for _, res := range results {
			if s.slot.publishEvent(gen, res.Event, now) {
				s.slot.resolve(gen, res, now)
			}
		}
	}
	return results
}
