package decoder

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"

	"shelfscan/internal/barcode"
)

const (
	maxSweepDepth = 4
	minSweepSide  = 24
)

var errNoCode = errors.New("no code found")

type codeReader interface {
	decode(bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) (*gozxing.Result, error)
}

// singleReader builds a fresh gozxing reader per attempt so no state leaks
// between frames.
type singleReader struct {
	newReader func() gozxing.Reader
}

func (r singleReader) decode(bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) (*gozxing.Result, error) {
	result, err := r.newReader().Decode(bmp, hints)
	if err != nil {
		if isNoSymbol(err) {
			return nil, errNoCode
		}
		return nil, err
	}
	return result, nil
}

// isNoSymbol reports whether err means the reader found no valid symbol in
// the bitmap. Format and checksum failures come from patterns that looked like
// a finder but did not decode; they are misses, not reader faults.
func isNoSymbol(err error) bool {
	var (
		notFound gozxing.NotFoundException
		format   gozxing.FormatException
		checksum gozxing.ChecksumException
	)
	return errors.As(err, &notFound) || errors.As(err, &format) || errors.As(err, &checksum)
}

// multiReader tries each reader in order and returns the first hit.
type multiReader []codeReader

func (m multiReader) decode(bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) (*gozxing.Result, error) {
	var lastErr error
	for _, r := range m {
		result, err := r.decode(bmp, hints)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, errNoCode) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errNoCode
}

// sweeper finds every code region of one family. After each hit it re-scans
// the image areas left, above, right and below the region, so identical labels
// at different positions are all reported. Duplicates are decided by region
// overlap only.
type sweeper struct {
	family  string
	reader  codeReader
	hints   map[gozxing.DecodeHintType]interface{}
	polygon func([]barcode.Point) []barcode.Point
	linear  bool

	found []barcode.DecodedCode
	errs  []error
}

func (s *sweeper) sweep(img *image.Gray) ([]barcode.DecodedCode, error) {
	s.run(img, image.Point{}, 0)
	if len(s.found) == 0 {
		s.split(img)
	}
	// Reader errors only matter when the family found nothing at all; partial
	// failures on sub-regions are expected while sweeping.
	if len(s.errs) == 0 || len(s.found) > 0 {
		return s.found, nil
	}
	return s.found, &barcode.DecodeError{Family: s.family, Err: errors.Join(s.errs...)}
}

func (s *sweeper) run(img *image.Gray, origin image.Point, depth int) {
	if depth > maxSweepDepth {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < minSweepSide || h < minSweepSide {
		return
	}
	code, ok := s.decodeOnce(img, origin)
	if !ok {
		return
	}
	if !s.add(code) {
		return
	}

	region := code.Bounds().Sub(origin)
	if s.linear {
		// The scan line sits somewhere inside the bars; keep the whole band
		// out of the above/below searches.
		band := region.Dy()/2 + 1
		region.Min.Y -= band
		region.Max.Y += band
	}
	region = region.Intersect(image.Rect(0, 0, w, h))
	if region.Empty() {
		return
	}

	if region.Min.X >= minSweepSide {
		s.run(crop(img, image.Rect(0, 0, region.Min.X, h)), origin, depth+1)
	}
	if region.Min.Y >= minSweepSide {
		s.run(crop(img, image.Rect(0, 0, w, region.Min.Y)), origin, depth+1)
	}
	if w-region.Max.X >= minSweepSide {
		s.run(crop(img, image.Rect(region.Max.X, 0, w, h)), origin.Add(image.Pt(region.Max.X, 0)), depth+1)
	}
	if h-region.Max.Y >= minSweepSide {
		s.run(crop(img, image.Rect(0, region.Max.Y, w, h)), origin.Add(image.Pt(0, region.Max.Y)), depth+1)
	}
}

// split retries overlapping halves of the frame. Several symbols in one view
// can confuse a whole-image detector; each half holds fewer of them.
func (s *sweeper) split(img *image.Gray) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	halves := []image.Rectangle{
		image.Rect(0, 0, w*3/5, h),
		image.Rect(w*2/5, 0, w, h),
		image.Rect(0, 0, w, h*3/5),
		image.Rect(0, h*2/5, w, h),
	}
	for _, r := range halves {
		s.run(crop(img, r), r.Min, 1)
	}
}

func (s *sweeper) decodeOnce(img *image.Gray, origin image.Point) (barcode.DecodedCode, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		s.errs = append(s.errs, err)
		return barcode.DecodedCode{}, false
	}
	result, err := s.reader.decode(bmp, s.hints)
	if err != nil {
		if !errors.Is(err, errNoCode) {
			s.errs = append(s.errs, err)
		}
		return barcode.DecodedCode{}, false
	}
	format, ok := convertFormat(result.GetBarcodeFormat())
	if !ok {
		return barcode.DecodedCode{}, false
	}

	points := make([]barcode.Point, 0, len(result.GetResultPoints()))
	for _, p := range result.GetResultPoints() {
		if p == nil {
			continue
		}
		points = append(points, barcode.Point{
			X: p.GetX() + float64(origin.X),
			Y: p.GetY() + float64(origin.Y),
		})
	}

	var raw []byte
	if rb := result.GetRawBytes(); len(rb) > 0 {
		raw = append([]byte(nil), rb...)
	}
	return barcode.DecodedCode{
		Payload: result.GetText(),
		Raw:     raw,
		Format:  format,
		Polygon: s.polygon(points),
	}, true
}

func (s *sweeper) add(code barcode.DecodedCode) bool {
	bounds := code.Bounds()
	for _, existing := range s.found {
		if existing.Payload != code.Payload || existing.Format != code.Format {
			continue
		}
		if sameRegion(existing.Bounds(), bounds) {
			return false
		}
	}
	s.found = append(s.found, code)
	return true
}

func sameRegion(a, b image.Rectangle) bool {
	inter := a.Intersect(b)
	if inter.Empty() {
		return false
	}
	smaller := area(a)
	if ab := area(b); ab < smaller {
		smaller = ab
	}
	if smaller == 0 {
		return true
	}
	return area(inter)*2 >= smaller
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

func crop(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		src := img.Pix[img.PixOffset(r.Min.X, r.Min.Y+y):]
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()], src[:r.Dx()])
	}
	return out
}
