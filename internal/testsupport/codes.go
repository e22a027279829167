package testsupport

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"shelfscan/internal/frame"
)

// QRImage renders payload as a QR symbol of roughly size×size pixels,
// including the quiet zone.
func QRImage(t testing.TB, payload string, size int) *image.Gray {
	t.Helper()

	matrix, err := qrcode.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		t.Fatalf("encode qr %q: %v", payload, err)
	}
	return matrixToGray(matrix)
}

// Code128Image renders payload as a Code 128 symbol.
func Code128Image(t testing.TB, payload string, width, height int) *image.Gray {
	t.Helper()

	matrix, err := oned.NewCode128Writer().Encode(payload, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	if err != nil {
		t.Fatalf("encode code128 %q: %v", payload, err)
	}
	return matrixToGray(matrix)
}

// Canvas returns a white grayscale image.
func Canvas(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

// Paste copies src onto dst with its top-left corner at at.
func Paste(dst *image.Gray, src image.Image, at image.Point) {
	b := src.Bounds()
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(b.Size())}, src, b.Min, draw.Src)
}

// QRFrame renders a single QR symbol centred on a white canvas and wraps it as an RGB frame.
func QRFrame(t testing.TB, payload string, width, height int) *frame.Frame {
	t.Helper()

	side := width
	if height < side {
		side = height
	}
	symbol := QRImage(t, payload, side*3/4)
	canvas := Canvas(width, height)
	sb := symbol.Bounds()
	Paste(canvas, symbol, image.Pt((width-sb.Dx())/2, (height-sb.Dy())/2))
	return GrayToRGB(canvas)
}

// BlankFrame returns a uniformly white RGB frame.
func BlankFrame(width, height int) *frame.Frame {
	return GrayToRGB(Canvas(width, height))
}

// GrayToRGB expands a grayscale image into an rgb24 frame, the layout the live
// camera source delivers.
func GrayToRGB(img *image.Gray) *frame.Frame {
	b := img.Bounds()
	f := frame.New(b.Dx(), b.Dy(), frame.LayoutRGB24)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := img.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			o := y*f.Stride + x*3
			f.Pix[o], f.Pix[o+1], f.Pix[o+2] = v, v, v
		}
	}
	return f
}

func matrixToGray(m *gozxing.BitMatrix) *image.Gray {
	w, h := m.GetWidth(), m.GetHeight()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.Get(x, y) {
				img.Pix[y*img.Stride+x] = 0
			} else {
				img.Pix[y*img.Stride+x] = 0xff
			}
		}
	}
	return img
}
