package frame

import (
	"fmt"
	"image"
	"image/draw"
	"time"
)

// Layout describes the channel layout of a pixel buffer.
type Layout string

const (
	LayoutGray8  Layout = "gray8"
	LayoutRGB24  Layout = "rgb24"
	LayoutBGR24  Layout = "bgr24"
	LayoutRGBA32 Layout = "rgba32"
)

// BytesPerPixel returns the channel count for the layout, or 0 when unknown.
func (l Layout) BytesPerPixel() int {
	switch l {
	case LayoutGray8:
		return 1
	case LayoutRGB24, LayoutBGR24:
		return 3
	case LayoutRGBA32:
		return 4
	default:
		return 0
	}
}

// Frame is a raw pixel buffer handed over by a frame source.
//
// Pix MUST NOT be modified once the frame has been delivered; the pipeline
// only reads from it and draws overlays onto copies.
type Frame struct {
	Width      int
	Height     int
	Stride     int
	Layout     Layout
	Pix        []byte
	Seq        uint64
	CapturedAt time.Time
}

// New allocates a zeroed frame with a tight stride.
func New(width, height int, layout Layout) *Frame {
	stride := width * layout.BytesPerPixel()
	return &Frame{
		Width:  width,
		Height: height,
		Stride: stride,
		Layout: layout,
		Pix:    make([]byte, stride*height),
	}
}

// MaxDimension bounds frame width and height. It keeps the buffer arithmetic
// below far from overflow.
const MaxDimension = 1 << 15

// Validate checks that the buffer is large enough for the declared geometry.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	bpp := f.Layout.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("unsupported pixel layout %q", f.Layout)
	}
	if f.Width <= 0 || f.Height <= 0 || f.Width > MaxDimension || f.Height > MaxDimension {
		return fmt.Errorf("invalid dimensions %dx%d", f.Width, f.Height)
	}
	row := f.Width * bpp
	if f.Stride < row {
		return fmt.Errorf("stride %d shorter than row width %d", f.Stride, row)
	}
	if len(f.Pix) < row {
		return fmt.Errorf("buffer holds %d bytes, need at least %d", len(f.Pix), row)
	}
	// Stride*(Height-1)+row <= len(Pix), rearranged so nothing overflows.
	if f.Height > 1 && f.Stride > (len(f.Pix)-row)/(f.Height-1) {
		return fmt.Errorf("buffer holds %d bytes, too short for stride %d over %d rows", len(f.Pix), f.Stride, f.Height)
	}
	return nil
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Gray converts the frame into a freshly allocated 8-bit luminance image.
func (f *Frame) Gray() *image.Gray {
	out := image.NewGray(f.Bounds())
	bpp := f.Layout.BytesPerPixel()
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < f.Width; x++ {
			px := row[x*bpp:]
			switch f.Layout {
			case LayoutGray8:
				dst[x] = px[0]
			case LayoutBGR24:
				dst[x] = luma(px[2], px[1], px[0])
			default:
				dst[x] = luma(px[0], px[1], px[2])
			}
		}
	}
	return out
}

// RGBA converts the frame into a freshly allocated RGBA image.
func (f *Frame) RGBA() *image.RGBA {
	out := image.NewRGBA(f.Bounds())
	bpp := f.Layout.BytesPerPixel()
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < f.Width; x++ {
			px := row[x*bpp:]
			o := dst[x*4:]
			switch f.Layout {
			case LayoutGray8:
				o[0], o[1], o[2], o[3] = px[0], px[0], px[0], 0xff
			case LayoutBGR24:
				o[0], o[1], o[2], o[3] = px[2], px[1], px[0], 0xff
			case LayoutRGBA32:
				o[0], o[1], o[2], o[3] = px[0], px[1], px[2], px[3]
			default:
				o[0], o[1], o[2], o[3] = px[0], px[1], px[2], 0xff
			}
		}
	}
	return out
}

// FromImage copies any image into an RGBA frame anchored at the origin.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return FromRGBA(rgba)
}

// FromRGBA wraps an RGBA image without copying its pixels.
func FromRGBA(img *image.RGBA) *Frame {
	b := img.Bounds()
	pix := img.Pix
	if b.Min != (image.Point{}) {
		pix = pix[img.PixOffset(b.Min.X, b.Min.Y):]
	}
	return &Frame{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: img.Stride,
		Layout: LayoutRGBA32,
		Pix:    pix,
	}
}

// FromGray wraps a grayscale image without copying its pixels.
func FromGray(img *image.Gray) *Frame {
	b := img.Bounds()
	pix := img.Pix
	if b.Min != (image.Point{}) {
		pix = pix[img.PixOffset(b.Min.X, b.Min.Y):]
	}
	return &Frame{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: img.Stride,
		Layout: LayoutGray8,
		Pix:    pix,
	}
}

// WithMeta returns a shallow copy carrying the sequence number and capture time.
func (f *Frame) WithMeta(seq uint64, capturedAt time.Time) *Frame {
	clone := *f
	clone.Seq = seq
	clone.CapturedAt = capturedAt
	return &clone
}

func luma(r, g, b uint8) uint8 {
	y := (19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16
	return uint8(y)
}

