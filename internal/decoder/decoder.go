package decoder

import (
	"errors"
	"log/slog"

	"github.com/makiuchi-d/gozxing"

	"shelfscan/internal/barcode"
	"shelfscan/internal/frame"
	"shelfscan/internal/logging"
)

const (
	defaultMinWidth  = 32
	defaultMinHeight = 32
)

// Decoder finds every code in a single frame. Implementations must not
// modify the frame and must not keep state between calls.
type Decoder interface {
	Decode(f *frame.Frame) ([]barcode.DecodedCode, error)
}

// Options configures a Composite decoder.
type Options struct {
	Formats   barcode.FormatSet
	MinWidth  int
	MinHeight int
	TryHarder bool
	Families  []Family
	Logger    *slog.Logger
}

// Capability describes the state of one decoder family.
type Capability struct {
	Family    string
	Formats   []barcode.Format
	Requested bool
	Available bool
	Reason    string
}

// Composite fans a decode out over every enabled family.
type Composite struct {
	families  []Family
	enabled   barcode.FormatSet
	minWidth  int
	minHeight int
	hints     map[gozxing.DecodeHintType]interface{}
	caps      []Capability
	missing   []*barcode.CapabilityMissing
}

// New probes the families once and drops formats whose backend is absent.
// Each missing family that was requested is logged a single time here.
func New(opts Options) *Composite {
	families := opts.Families
	if len(families) == 0 {
		families = DefaultFamilies()
	}
	requested := opts.Formats
	if requested == nil {
		requested = barcode.NewFormatSet(barcode.AllFormats()...)
	}
	logger := logging.NewComponentLogger(opts.Logger, "decoder")

	c := &Composite{
		enabled:   barcode.NewFormatSet(),
		minWidth:  opts.MinWidth,
		minHeight: opts.MinHeight,
	}
	if c.minWidth <= 0 {
		c.minWidth = defaultMinWidth
	}
	if c.minHeight <= 0 {
		c.minHeight = defaultMinHeight
	}
	if opts.TryHarder {
		c.hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}

	for _, fam := range families {
		formats := fam.Formats()
		capability := Capability{Family: fam.Name(), Formats: formats}
		var wanted []barcode.Format
		for _, f := range formats {
			if requested.Has(f) {
				wanted = append(wanted, f)
			}
		}
		capability.Requested = len(wanted) > 0

		if err := fam.Available(); err != nil {
			capability.Reason = err.Error()
			c.caps = append(c.caps, capability)
			if !capability.Requested {
				continue
			}
			missing := &barcode.CapabilityMissing{Family: fam.Name(), Formats: wanted, Reason: err.Error()}
			c.missing = append(c.missing, missing)
			logging.WarnWithContext(logger, "decoder capability missing; formats disabled", "capability_missing",
				logging.String("family", fam.Name()),
				logging.Any("formats", wanted),
				logging.Error(missing),
				logging.String(logging.FieldErrorHint, "remove the formats from scanner.enabled_formats to silence this warning"),
				logging.String(logging.FieldImpact, "codes of these formats are ignored"),
			)
			continue
		}

		capability.Available = true
		c.caps = append(c.caps, capability)
		if capability.Requested {
			c.families = append(c.families, fam)
			for _, f := range wanted {
				c.enabled[f] = struct{}{}
			}
		}
	}
	return c
}

// Decode returns all codes found in f. Invalid buffers yield ErrInvalidInput;
// family failures are joined into the returned error while the codes found by
// other families are still returned.
func (c *Composite) Decode(f *frame.Frame) ([]barcode.DecodedCode, error) {
	if err := f.Validate(); err != nil {
		return nil, barcode.InvalidInputf("%v", err)
	}
	if f.Width < c.minWidth || f.Height < c.minHeight {
		return nil, barcode.InvalidInputf("image %dx%d below minimum %dx%d", f.Width, f.Height, c.minWidth, c.minHeight)
	}
	if len(c.families) == 0 {
		return nil, nil
	}

	gray := f.Gray()
	var codes []barcode.DecodedCode
	var errs []error
	for _, fam := range c.families {
		found, err := fam.Decode(gray, c.enabled, c.hints)
		if err != nil {
			errs = append(errs, err)
		}
		for _, code := range found {
			if c.enabled.Has(code.Format) {
				codes = append(codes, code)
			}
		}
	}
	return codes, errors.Join(errs...)
}

// Enabled returns the effective format set after capability probing.
func (c *Composite) Enabled() barcode.FormatSet {
	return c.enabled.Without()
}

// Capabilities reports every family, requested or not.
func (c *Composite) Capabilities() []Capability {
	out := make([]Capability, len(c.caps))
	copy(out, c.caps)
	return out
}

// Missing lists requested families whose backend is absent.
func (c *Composite) Missing() []*barcode.CapabilityMissing {
	out := make([]*barcode.CapabilityMissing, len(c.missing))
	copy(out, c.missing)
	return out
}
