package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"shelfscan/internal/barcode"
	"shelfscan/internal/frame"
)

var (
	outlineColor = color.RGBA{R: 0x00, G: 0xd0, B: 0x40, A: 0xff}
	labelBG      = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xc0}
	labelFG      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

const (
	lineWidth    = 2
	labelPadding = 3
)

// Draw returns an RGBA copy of f with every code outlined and labelled
// "FORMAT: payload". The input frame is left untouched and the output keeps
// its dimensions, sequence and capture time.
func Draw(f *frame.Frame, codes []barcode.DecodedCode) *frame.Frame {
	canvas := f.RGBA()
	for _, code := range codes {
		drawPolygon(canvas, code.Polygon)
		drawLabel(canvas, code)
	}
	out := frame.FromRGBA(canvas)
	out.Seq = f.Seq
	out.CapturedAt = f.CapturedAt
	return out
}

func drawPolygon(img *image.RGBA, poly []barcode.Point) {
	if len(poly) < 2 {
		return
	}
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		drawLine(img, a, b)
	}
}

// drawLine rasterizes a thick segment with Bresenham steps; points outside the
// image are clipped per pixel.
func drawLine(img *image.RGBA, a, b barcode.Point) {
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errAcc := dx + dy
	bounds := img.Bounds()
	for {
		for oy := 0; oy < lineWidth; oy++ {
			for ox := 0; ox < lineWidth; ox++ {
				p := image.Pt(x0+ox, y0+oy)
				if p.In(bounds) {
					img.SetRGBA(p.X, p.Y, outlineColor)
				}
			}
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x0 += sx
		}
		if e2 <= dx {
			errAcc += dx
			y0 += sy
		}
	}
}

func drawLabel(img *image.RGBA, code barcode.DecodedCode) {
	text := code.Format.Label() + ": " + code.Label()
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	bounds := img.Bounds()
	box := code.Bounds()
	x := box.Min.X
	y := box.Min.Y - height - 2*labelPadding
	if y < bounds.Min.Y {
		y = box.Max.Y
	}
	if x+width+2*labelPadding > bounds.Max.X {
		x = bounds.Max.X - width - 2*labelPadding
	}
	if x < bounds.Min.X {
		x = bounds.Min.X
	}
	if y+height+2*labelPadding > bounds.Max.Y {
		y = bounds.Max.Y - height - 2*labelPadding
	}
	if y < bounds.Min.Y {
		y = bounds.Min.Y
	}

	bg := image.Rect(x, y, x+width+2*labelPadding, y+height+2*labelPadding).Intersect(bounds)
	draw.Draw(img, bg, &image.Uniform{C: labelBG}, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelFG),
		Face: face,
		Dot:  fixed.P(x+labelPadding, y+labelPadding+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
