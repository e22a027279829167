package testsupport

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes raw bytes, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WritePNG encodes img as PNG at path.
func WritePNG(t testing.TB, path string, img image.Image) {
	t.Helper()
	writeImage(t, path, func(f *os.File) error { return png.Encode(f, img) })
}

// WriteJPEG encodes img as a high quality JPEG at path.
func WriteJPEG(t testing.TB, path string, img image.Image) {
	t.Helper()
	writeImage(t, path, func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 95}) })
}

func writeImage(t testing.TB, path string, encode func(*os.File) error) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := encode(f); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// PNGBytes encodes img as PNG in memory.
func PNGBytes(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
