package frameproc

import (
	"errors"
	"log/slog"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/decoder"
	"shelfscan/internal/frame"
	"shelfscan/internal/logging"
	"shelfscan/internal/overlay"
	"shelfscan/internal/stabilizer"
)

// DefaultFrameSkip decodes one frame in five.
const DefaultFrameSkip = 5

// Options configures a Processor.
type Options struct {
	FrameSkip     int
	RedrawOverlay bool
	Clock         func() time.Time
	Logger        *slog.Logger
}

// Result describes one processed frame.
type Result struct {
	Annotated *frame.Frame
	Codes     []barcode.DecodedCode
	Events    []barcode.ScanEvent
	Admitted  bool
}

// Processor applies the frame-skip policy, runs the decoder on admitted
// frames, draws overlays, and feeds the stabilizer. It is owned by a single
// frame callback and is not safe for concurrent use.
type Processor struct {
	dec       decoder.Decoder
	stab      *stabilizer.Stabilizer
	frameSkip uint64
	redraw    bool
	clock     func() time.Time
	logger    *slog.Logger

	counter   uint64
	lastCodes []barcode.DecodedCode
}

// New wires a Processor around dec and stab.
func New(dec decoder.Decoder, stab *stabilizer.Stabilizer, opts Options) *Processor {
	skip := opts.FrameSkip
	if skip <= 0 {
		skip = DefaultFrameSkip
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Processor{
		dec:       dec,
		stab:      stab,
		frameSkip: uint64(skip),
		redraw:    opts.RedrawOverlay,
		clock:     clock,
		logger:    logging.NewComponentLogger(opts.Logger, "frameproc"),
	}
}

// OnFrame processes one delivered frame. Frame k (counting from zero) is
// decoded when k is a multiple of the frame skip; other frames pass through,
// carrying the last overlay when redraw is enabled.
func (p *Processor) OnFrame(f *frame.Frame) Result {
	admitted := p.counter%p.frameSkip == 0
	p.counter++

	if !admitted {
		annotated := f
		if p.redraw && len(p.lastCodes) > 0 {
			annotated = overlay.Draw(f, p.lastCodes)
		}
		return Result{Annotated: annotated}
	}

	codes, err := p.dec.Decode(f)
	if err != nil {
		attrs := []logging.Attr{logging.Error(err), logging.Int("codes", len(codes))}
		if f != nil {
			attrs = append(attrs, logging.Uint64("seq", f.Seq))
		}
		p.logger.Debug("frame decode failed", logging.Args(attrs...)...)
		if errors.Is(err, barcode.ErrInvalidInput) {
			codes = nil
		}
	}

	p.lastCodes = codes
	annotated := f
	if len(codes) > 0 {
		annotated = overlay.Draw(f, codes)
	}

	var events []barcode.ScanEvent
	if p.stab != nil {
		events = p.stab.Observe(codes, p.clock())
	}
	return Result{Annotated: annotated, Codes: codes, Events: events, Admitted: true}
}

// Reset clears the frame counter, the remembered overlay, and the stabilizer.
func (p *Processor) Reset() {
	p.counter = 0
	p.lastCodes = nil
	if p.stab != nil {
		p.stab.Reset()
	}
}

// Frames returns how many frames have been delivered since the last reset.
func (p *Processor) Frames() uint64 {
	return p.counter
}
