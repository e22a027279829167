// Package imageio converts encoded still images into frames for the decoder
// and encodes annotated frames for clients. PNG, JPEG, GIF, BMP, TIFF and
// WebP inputs are accepted.
package imageio
