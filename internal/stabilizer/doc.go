// Package stabilizer suppresses jittery per-frame detections.
//
// A payload must persist across a configurable number of admitted ticks before
// a ScanEvent is emitted, and each payload is then held under a cooldown so a
// single physical scan produces a single event. State is bounded: payloads
// with no live streak and an expired cooldown are evicted on every tick.
package stabilizer
