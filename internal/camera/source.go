package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"shelfscan/internal/config"
	"shelfscan/internal/frame"
)

// Source opens frame streams.
type Source interface {
	// Device names the underlying device; it keys the device lock and
	// hotplug matching.
	Device() string
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers frames until closed. Frames handed to deliver must not be
// modified by the receiver.
type Stream interface {
	// Start begins delivery on a stream-owned goroutine. deliver is never
	// called concurrently with itself.
	Start(deliver func(*frame.Frame)) error
	// Done is closed when delivery has ended for any reason.
	Done() <-chan struct{}
	// Err reports why delivery ended. It is nil after Close or a finished replay.
	Err() error
	// Close stops delivery, waits for an in-flight deliver call to return and
	// releases the device. It is idempotent.
	Close() error
}

// NewSource builds the source selected by the camera configuration.
func NewSource(cfg *config.Config, logger *slog.Logger) (Source, error) {
	if cfg == nil {
		return nil, errors.New("camera source requires config")
	}
	switch cfg.Camera.Source {
	case config.SourceReplay:
		return NewReplaySource(cfg.Camera.ReplayDir, cfg.Camera.FPS, cfg.Camera.ReplayLoop, logger), nil
	case config.SourcePush:
		return NewPushSource("api"), nil
	case config.SourceFFmpeg, "":
		return NewFFmpegSource(FFmpegOptions{
			Binary: cfg.FFmpegBinary(),
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.Camera.Source)
	}
}

// runner holds the lifecycle shared by stream implementations: a single
// delivery goroutine, a done channel and a terminal error.
type runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	err     error

	wg   sync.WaitGroup
	done chan struct{}
}

func newRunner(parent context.Context) *runner {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &runner{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (r *runner) start(loop func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("stream closed")
	}
	if r.started {
		return errors.New("stream already started")
	}
	r.started = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.done)
		err := loop(r.ctx)
		r.mu.Lock()
		if !r.closed {
			r.err = err
		}
		r.mu.Unlock()
	}()
	return nil
}

// stop cancels delivery and waits for the loop. It reports whether this call
// performed the shutdown.
func (r *runner) stop() bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	if !started {
		close(r.done)
	}
	return true
}

func (r *runner) Done() <-chan struct{} { return r.done }

func (r *runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
