package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"shelfscan/internal/frame"
	"shelfscan/internal/logging"
)

// FFmpegOptions configures a live V4L2 capture.
type FFmpegOptions struct {
	Binary string
	Device string
	// InputFormat is the ffmpeg demuxer; defaults to v4l2.
	InputFormat string
	Width       int
	Height      int
	FPS         int
	// SkipDeviceCheck disables the access probe for inputs that are not
	// device nodes.
	SkipDeviceCheck bool
	Logger          *slog.Logger
}

// FFmpegSource captures frames by running ffmpeg and reading rgb24 rawvideo
// from its stdout.
type FFmpegSource struct {
	opts   FFmpegOptions
	logger *slog.Logger
}

// NewFFmpegSource constructs an ffmpeg-backed source.
func NewFFmpegSource(opts FFmpegOptions) *FFmpegSource {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.InputFormat == "" {
		opts.InputFormat = "v4l2"
	}
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 480
	}
	if opts.FPS <= 0 {
		opts.FPS = 15
	}
	return &FFmpegSource{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "ffmpeg-camera")}
}

// Device implements Source.
func (s *FFmpegSource) Device() string { return s.opts.Device }

// Args returns the ffmpeg argument list.
func (s *FFmpegSource) Args() []string {
	o := s.opts
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", o.InputFormat,
		"-framerate", strconv.Itoa(o.FPS),
		"-video_size", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-i", o.Device,
		"-vf", fmt.Sprintf("scale=%d:%d", o.Width, o.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	}
}

// Open checks the device and launches ffmpeg.
func (s *FFmpegSource) Open(ctx context.Context) (Stream, error) {
	binary, err := exec.LookPath(s.opts.Binary)
	if err != nil {
		return nil, newError(KindFailed, s.opts.Device, fmt.Errorf("ffmpeg binary %q not found: %w", s.opts.Binary, err))
	}
	if !s.opts.SkipDeviceCheck {
		if err := CheckDevice(s.opts.Device); err != nil {
			return nil, err
		}
	}

	r := newRunner(ctx)
	cmd := exec.CommandContext(r.ctx, binary, s.Args()...)
	cmd.WaitDelay = 2 * time.Second
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.cancel()
		return nil, newError(KindFailed, s.opts.Device, fmt.Errorf("ffmpeg stdout: %w", err))
	}
	if err := cmd.Start(); err != nil {
		r.cancel()
		return nil, newError(KindFailed, s.opts.Device, fmt.Errorf("start ffmpeg: %w", err))
	}
	s.logger.Info("camera capture started",
		logging.String(logging.FieldEventType, "camera_started"),
		logging.String("device", s.opts.Device),
		logging.String("size", fmt.Sprintf("%dx%d", s.opts.Width, s.opts.Height)),
		logging.Int("fps", s.opts.FPS),
	)
	return &ffmpegStream{
		runner: r,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		opts:   s.opts,
		logger: s.logger,
	}, nil
}

type ffmpegStream struct {
	*runner
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	opts   FFmpegOptions
	logger *slog.Logger

	waitOnce sync.Once
	waitErr  error
}

func (s *ffmpegStream) Start(deliver func(*frame.Frame)) error {
	if deliver == nil {
		return errors.New("deliver callback required")
	}
	return s.start(func(ctx context.Context) error {
		size := s.opts.Width * s.opts.Height * frame.LayoutRGB24.BytesPerPixel()
		var seq uint64
		for {
			f := frame.New(s.opts.Width, s.opts.Height, frame.LayoutRGB24)
			if _, err := io.ReadFull(s.stdout, f.Pix[:size]); err != nil {
				waitErr := s.wait()
				if ctx.Err() != nil {
					return nil
				}
				return s.classifyExit(err, waitErr)
			}
			f.Seq = seq
			f.CapturedAt = time.Now()
			seq++
			deliver(f)
		}
	})
}

func (s *ffmpegStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

func (s *ffmpegStream) classifyExit(readErr, waitErr error) error {
	output := strings.TrimSpace(s.stderr.String())
	kind := classifyCaptureOutput(output)
	if kind == "" {
		kind = KindDisconnected
	}
	cause := readErr
	if waitErr != nil {
		cause = fmt.Errorf("%w (ffmpeg: %v)", readErr, waitErr)
	}
	if output != "" {
		cause = fmt.Errorf("%w: %s", cause, lastLine(output))
	}
	logging.WarnWithContext(s.logger, "camera capture ended", "camera_capture_ended",
		logging.String("device", s.opts.Device),
		logging.String("kind", string(kind)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, newError(kind, s.opts.Device, nil).Guidance()),
		logging.String(logging.FieldImpact, "live scanning stopped"),
	)
	return newError(kind, s.opts.Device, cause)
}

func (s *ffmpegStream) Close() error {
	if !s.stop() {
		return nil
	}
	// The loop waits when it ran; otherwise reap the process here.
	err := s.wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("camera capture stopped",
		logging.String(logging.FieldEventType, "camera_stopped"),
		logging.String("device", s.opts.Device),
	)
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
