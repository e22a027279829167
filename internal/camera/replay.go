package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shelfscan/internal/frame"
	"shelfscan/internal/imageio"
	"shelfscan/internal/logging"
)

// ReplaySource plays still images from a directory as a camera feed.
type ReplaySource struct {
	dir      string
	files    []string
	interval time.Duration
	loop     bool
	logger   *slog.Logger
}

// NewReplaySource plays the images in dir at fps frames per second, sorted
// by file name. fps <= 0 delivers as fast as the receiver accepts.
func NewReplaySource(dir string, fps int, loop bool, logger *slog.Logger) *ReplaySource {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &ReplaySource{
		dir:      dir,
		interval: interval,
		loop:     loop,
		logger:   logging.NewComponentLogger(logger, "replay"),
	}
}

// NewReplayFiles plays an explicit list of image files.
func NewReplayFiles(files []string, fps int, loop bool, logger *slog.Logger) *ReplaySource {
	src := NewReplaySource("", fps, loop, logger)
	src.files = append([]string(nil), files...)
	return src
}

// Device implements Source.
func (s *ReplaySource) Device() string {
	if s.dir != "" {
		return "replay:" + s.dir
	}
	return "replay"
}

// Open decodes every image up front so unreadable input fails before the
// session starts.
func (s *ReplaySource) Open(ctx context.Context) (Stream, error) {
	files := s.files
	if len(files) == 0 {
		if s.dir == "" {
			return nil, newError(KindNotFound, s.Device(), errors.New("no replay directory configured"))
		}
		if _, err := os.Stat(s.dir); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, newError(KindNotFound, s.Device(), err)
			}
			return nil, newError(KindFailed, s.Device(), err)
		}
		listed, err := imageio.ListDir(s.dir)
		if err != nil {
			return nil, newError(KindFailed, s.Device(), err)
		}
		files = listed
	}

	frames := make([]*frame.Frame, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := imageio.DecodeFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable replay image",
				logging.String("file", filepath.Base(path)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "replay_image_skipped"),
				logging.String(logging.FieldErrorHint, "remove or re-export the file"),
				logging.String(logging.FieldImpact, "frame omitted from replay"),
			)
			continue
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return nil, newError(KindNotFound, s.Device(), fmt.Errorf("no decodable images among %d files", len(files)))
	}
	s.logger.Debug("replay opened",
		logging.Int("frames", len(frames)),
		logging.Bool("loop", s.loop),
		logging.Duration("interval", s.interval),
	)
	return &replayStream{runner: newRunner(ctx), frames: frames, interval: s.interval, loop: s.loop}, nil
}

type replayStream struct {
	*runner
	frames   []*frame.Frame
	interval time.Duration
	loop     bool
}

func (r *replayStream) Start(deliver func(*frame.Frame)) error {
	if deliver == nil {
		return errors.New("deliver callback required")
	}
	return r.start(func(ctx context.Context) error {
		var (
			seq    uint64
			ticker *time.Ticker
		)
		if r.interval > 0 {
			ticker = time.NewTicker(r.interval)
			defer ticker.Stop()
		}
		for {
			for _, f := range r.frames {
				if ctx.Err() != nil {
					return nil
				}
				deliver(f.WithMeta(seq, time.Now()))
				seq++
				if ticker != nil {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
				}
			}
			if !r.loop {
				return nil
			}
		}
	})
}

func (r *replayStream) Close() error {
	r.stop()
	return nil
}
