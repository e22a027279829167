package decoder

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"shelfscan/internal/barcode"
)

// Family is one symbology family backend. Families are independently
// enabled; a family whose backend is absent reports it from Available.
type Family interface {
	Name() string
	Formats() []barcode.Format
	Available() error
	Decode(img *image.Gray, enabled barcode.FormatSet, hints map[gozxing.DecodeHintType]interface{}) ([]barcode.DecodedCode, error)
}

// DefaultFamilies returns the families compiled into the binary.
func DefaultFamilies() []Family {
	return []Family{
		qrFamily{},
		linearFamily{},
		dataMatrixFamily{},
		pdf417Family{},
	}
}

type qrFamily struct{}

func (qrFamily) Name() string              { return "qr" }
func (qrFamily) Formats() []barcode.Format { return []barcode.Format{barcode.FormatQR} }
func (qrFamily) Available() error          { return nil }

func (f qrFamily) Decode(img *image.Gray, enabled barcode.FormatSet, hints map[gozxing.DecodeHintType]interface{}) ([]barcode.DecodedCode, error) {
	if !enabled.Has(barcode.FormatQR) {
		return nil, nil
	}
	s := &sweeper{
		family:  f.Name(),
		reader:  singleReader{newReader: qrcode.NewQRCodeReader},
		hints:   hints,
		polygon: qrPolygon,
	}
	return s.sweep(img)
}

type linearFamily struct{}

var linearReaders = []struct {
	format    barcode.Format
	newReader func() gozxing.Reader
}{
	{barcode.FormatCode128, oned.NewCode128Reader},
	{barcode.FormatCode39, oned.NewCode39Reader},
	{barcode.FormatEAN13, oned.NewEAN13Reader},
	{barcode.FormatEAN8, oned.NewEAN8Reader},
	{barcode.FormatUPCA, oned.NewUPCAReader},
}

func (linearFamily) Name() string { return "linear" }

func (linearFamily) Formats() []barcode.Format {
	out := make([]barcode.Format, len(linearReaders))
	for i, r := range linearReaders {
		out[i] = r.format
	}
	return out
}

func (linearFamily) Available() error { return nil }

func (f linearFamily) Decode(img *image.Gray, enabled barcode.FormatSet, hints map[gozxing.DecodeHintType]interface{}) ([]barcode.DecodedCode, error) {
	var readers multiReader
	for _, r := range linearReaders {
		if enabled.Has(r.format) {
			readers = append(readers, singleReader{newReader: r.newReader})
		}
	}
	if len(readers) == 0 {
		return nil, nil
	}
	s := &sweeper{
		family:  f.Name(),
		reader:  readers,
		hints:   hints,
		polygon: linearPolygon,
		linear:  true,
	}
	return s.sweep(img)
}

type dataMatrixFamily struct{}

func (dataMatrixFamily) Name() string              { return "datamatrix" }
func (dataMatrixFamily) Formats() []barcode.Format { return []barcode.Format{barcode.FormatDataMatrix} }
func (dataMatrixFamily) Available() error          { return nil }

func (f dataMatrixFamily) Decode(img *image.Gray, enabled barcode.FormatSet, hints map[gozxing.DecodeHintType]interface{}) ([]barcode.DecodedCode, error) {
	if !enabled.Has(barcode.FormatDataMatrix) {
		return nil, nil
	}
	s := &sweeper{
		family:  f.Name(),
		reader:  singleReader{newReader: func() gozxing.Reader { return datamatrix.NewDataMatrixReader() }},
		hints:   hints,
		polygon: hullPolygon,
	}
	return s.sweep(img)
}

// pdf417Family has no reader in gozxing; it stays registered so the format
// shows up as a disabled capability instead of an unknown tag.
type pdf417Family struct{}

var errNoPDF417Reader = errors.New("gozxing ships no PDF417 reader")

func (pdf417Family) Name() string              { return "pdf417" }
func (pdf417Family) Formats() []barcode.Format { return []barcode.Format{barcode.FormatPDF417} }
func (pdf417Family) Available() error          { return errNoPDF417Reader }

func (pdf417Family) Decode(*image.Gray, barcode.FormatSet, map[gozxing.DecodeHintType]interface{}) ([]barcode.DecodedCode, error) {
	return nil, errNoPDF417Reader
}

func convertFormat(f gozxing.BarcodeFormat) (barcode.Format, bool) {
	switch f {
	case gozxing.BarcodeFormat_QR_CODE:
		return barcode.FormatQR, true
	case gozxing.BarcodeFormat_CODE_128:
		return barcode.FormatCode128, true
	case gozxing.BarcodeFormat_CODE_39:
		return barcode.FormatCode39, true
	case gozxing.BarcodeFormat_EAN_13:
		return barcode.FormatEAN13, true
	case gozxing.BarcodeFormat_EAN_8:
		return barcode.FormatEAN8, true
	case gozxing.BarcodeFormat_UPC_A:
		return barcode.FormatUPCA, true
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return barcode.FormatDataMatrix, true
	case gozxing.BarcodeFormat_PDF_417:
		return barcode.FormatPDF417, true
	default:
		return "", false
	}
}
