package imageio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"shelfscan/internal/barcode"
	"shelfscan/internal/frame"
)

// MaxPixels bounds decoded image area to keep uploads from exhausting memory.
const MaxPixels = 40_000_000

var extensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// Supported reports whether path has a recognised image extension.
func Supported(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Decode reads an encoded image and returns it as an RGBA frame together with
// the detected format name. Unreadable data wraps barcode.ErrInvalidInput.
func Decode(r io.Reader) (*frame.Frame, string, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(head) == 0 {
		return nil, "", barcode.InvalidInputf("empty image")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
	if err == nil && cfg.Width*cfg.Height > MaxPixels {
		return nil, "", barcode.InvalidInputf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(br)
	if err != nil {
		return nil, "", barcode.InvalidInputf("decode image: %v", err)
	}
	b := img.Bounds()
	if b.Dx()*b.Dy() > MaxPixels {
		return nil, "", barcode.InvalidInputf("image %dx%d exceeds %d pixels", b.Dx(), b.Dy(), MaxPixels)
	}
	return toFrame(img), format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (*frame.Frame, string, error) {
	return Decode(bytes.NewReader(data))
}

// DecodeFile opens and decodes the image at path.
func DecodeFile(path string) (*frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()
	f, _, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return f, nil
}

func toFrame(img image.Image) *frame.Frame {
	switch v := img.(type) {
	case *image.Gray:
		return frame.FromGray(v)
	case *image.RGBA:
		return frame.FromRGBA(v)
	default:
		return frame.FromImage(img)
	}
}

// EncodePNG writes the frame as PNG.
func EncodePNG(w io.Writer, f *frame.Frame) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return png.Encode(w, f.RGBA())
}

// EncodeJPEG writes the frame as JPEG at the given quality (1-100).
func EncodeJPEG(w io.Writer, f *frame.Frame, quality int) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return jpeg.Encode(w, f.RGBA(), &jpeg.Options{Quality: quality})
}

// ListDir returns the supported image files in dir sorted by name.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	return out, nil
}
