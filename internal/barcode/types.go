package barcode

import (
	"fmt"
	"image"
	"math"
	"time"
)

// Point is a location in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DecodedCode is a single code region found by a decoder. Values are produced
// fresh per decode call and are not modified afterwards.
type DecodedCode struct {
	Payload string   `json:"payload"`
	Raw     []byte   `json:"raw,omitempty"`
	Format  Format   `json:"format"`
	Polygon []Point  `json:"polygon"`
	Quality *float64 `json:"quality,omitempty"`
}

// Bounds returns the integer rectangle enclosing the polygon.
func (c DecodedCode) Bounds() image.Rectangle {
	if len(c.Polygon) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range c.Polygon {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// Label is the overlay text for the code.
func (c DecodedCode) Label() string {
	payload := c.Payload
	if runes := []rune(payload); len(runes) > 30 {
		payload = string(runes[:30]) + "..."
	}
	return fmt.Sprintf("%s: %s", c.Format.Label(), payload)
}

// ItemRef references an inventory item matched by a scan.
type ItemRef struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Serial   string `json:"serial,omitempty"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ScanEvent is a stabilized detection. Events are never mutated after creation;
// lookup produces a copy with MatchedItem populated.
type ScanEvent struct {
	ID          string    `json:"id"`
	Payload     string    `json:"payload"`
	Format      Format    `json:"format"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	EmittedAt   time.Time `json:"emittedAt"`
	MatchedItem *ItemRef  `json:"matchedItem,omitempty"`
}

// WithItem returns a copy of the event carrying the matched item.
func (e ScanEvent) WithItem(item *ItemRef) ScanEvent {
	if item != nil {
		clone := *item
		item = &clone
	}
	e.MatchedItem = item
	return e
}
