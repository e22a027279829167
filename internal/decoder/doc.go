// Package decoder locates and decodes machine-readable codes in still frames.
//
// Each symbology family (QR, linear, DataMatrix, PDF417) is a separate
// Family backed by gozxing readers and can be enabled on its own. Composite
// probes the families once, records families whose backend is missing as
// disabled capabilities, and fans every Decode out over the rest. Decoding is
// a pure function of the input frame.
package decoder
