package decoder

import (
	"math"
	"sort"

	"shelfscan/internal/barcode"
)

const (
	// qrCornerGrowth pushes finder-pattern centres outwards towards the
	// symbol corners.
	qrCornerGrowth = 0.25
	minBandHalf    = 6.0
	bandRatio      = 0.2
	minBoxPad      = 4.0
)

// qrPolygon completes the three finder centres (bottom-left, top-left,
// top-right) into a parallelogram. Alignment patterns are ignored.
func qrPolygon(points []barcode.Point) []barcode.Point {
	if len(points) < 3 {
		return boxPolygon(points)
	}
	bl, tl, tr := points[0], points[1], points[2]
	br := barcode.Point{X: tr.X + bl.X - tl.X, Y: tr.Y + bl.Y - tl.Y}
	return grow([]barcode.Point{tl, tr, br, bl}, qrCornerGrowth)
}

// linearPolygon widens the start/end points of a scan line into a band.
func linearPolygon(points []barcode.Point) []barcode.Point {
	if len(points) < 2 {
		return boxPolygon(points)
	}
	start, end := points[0], points[len(points)-1]
	dx, dy := end.X-start.X, end.Y-start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return boxPolygon(points)
	}
	half := math.Max(minBandHalf, length*bandRatio)
	nx, ny := -dy/length*half, dx/length*half
	return []barcode.Point{
		{X: start.X + nx, Y: start.Y + ny},
		{X: end.X + nx, Y: end.Y + ny},
		{X: end.X - nx, Y: end.Y - ny},
		{X: start.X - nx, Y: start.Y - ny},
	}
}

// hullPolygon orders arbitrary corner points into a convex polygon.
func hullPolygon(points []barcode.Point) []barcode.Point {
	hull := convexHull(points)
	if len(hull) < 4 {
		return boxPolygon(points)
	}
	return hull
}

func boxPolygon(points []barcode.Point) []barcode.Point {
	if len(points) == 0 {
		return nil
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}
	if maxX-minX < 2*minBoxPad {
		minX, maxX = minX-minBoxPad, maxX+minBoxPad
	}
	if maxY-minY < 2*minBoxPad {
		minY, maxY = minY-minBoxPad, maxY+minBoxPad
	}
	return []barcode.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}}
}

func grow(points []barcode.Point, factor float64) []barcode.Point {
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(points))
	cy /= float64(len(points))
	out := make([]barcode.Point, len(points))
	for i, p := range points {
		out[i] = barcode.Point{X: p.X + (p.X-cx)*factor, Y: p.Y + (p.Y-cy)*factor}
	}
	return out
}

// convexHull uses Andrew's monotone chain and returns the hull clockwise in
// image coordinates (y grows downwards).
func convexHull(points []barcode.Point) []barcode.Point {
	if len(points) < 3 {
		return append([]barcode.Point(nil), points...)
	}
	pts := append([]barcode.Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X == pts[j].X {
			return pts[i].Y < pts[j].Y
		}
		return pts[i].X < pts[j].X
	})
	cross := func(o, a, b barcode.Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	hull := make([]barcode.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
