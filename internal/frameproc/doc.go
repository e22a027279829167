// Package frameproc drives the per-frame scanning pipeline: frame skipping,
// decoding, overlay drawing, and detection stabilization.
package frameproc
