// Package frame defines the raw pixel buffer exchanged between frame sources,
// the decoder and the overlay renderer, together with conversions to the
// standard image types those components consume.
package frame
