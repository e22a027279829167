package barcode

import (
	"fmt"
	"sort"
	"strings"
)

// Format identifies a symbology.
type Format string

const (
	FormatQR         Format = "qr"
	FormatCode128    Format = "code128"
	FormatCode39     Format = "code39"
	FormatEAN13      Format = "ean13"
	FormatEAN8       Format = "ean8"
	FormatUPCA       Format = "upca"
	FormatDataMatrix Format = "datamatrix"
	FormatPDF417     Format = "pdf417"
)

var allFormats = []Format{
	FormatQR,
	FormatCode128,
	FormatCode39,
	FormatEAN13,
	FormatEAN8,
	FormatUPCA,
	FormatDataMatrix,
	FormatPDF417,
}

var formatLabels = map[Format]string{
	FormatQR:         "QR",
	FormatCode128:    "Code128",
	FormatCode39:     "Code39",
	FormatEAN13:      "EAN13",
	FormatEAN8:       "EAN8",
	FormatUPCA:       "UPC-A",
	FormatDataMatrix: "DataMatrix",
	FormatPDF417:     "PDF417",
}

// AllFormats returns every known format in display order.
func AllFormats() []Format {
	out := make([]Format, len(allFormats))
	copy(out, allFormats)
	return out
}

// Label returns the human readable symbology name used in overlays and tables.
func (f Format) Label() string {
	if label, ok := formatLabels[f]; ok {
		return label
	}
	return strings.ToUpper(string(f))
}

// Valid reports whether f is a known format tag.
func (f Format) Valid() bool {
	_, ok := formatLabels[f]
	return ok
}

// ParseFormat converts a configuration tag ("qr", "EAN-13", "code_128") into a Format.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "qr", "qrcode":
		return FormatQR, nil
	case "code128":
		return FormatCode128, nil
	case "code39":
		return FormatCode39, nil
	case "ean13":
		return FormatEAN13, nil
	case "ean8":
		return FormatEAN8, nil
	case "upca", "upc":
		return FormatUPCA, nil
	case "datamatrix", "dm":
		return FormatDataMatrix, nil
	case "pdf417":
		return FormatPDF417, nil
	}
	return "", fmt.Errorf("unknown code format %q", value)
}

// FormatSet is an unordered set of formats.
type FormatSet map[Format]struct{}

// NewFormatSet builds a set from the provided formats.
func NewFormatSet(formats ...Format) FormatSet {
	set := make(FormatSet, len(formats))
	for _, f := range formats {
		set[f] = struct{}{}
	}
	return set
}

// ParseFormatSet parses configuration tags. An empty list selects every format.
func ParseFormatSet(values []string) (FormatSet, error) {
	if len(values) == 0 {
		return NewFormatSet(allFormats...), nil
	}
	set := make(FormatSet, len(values))
	for _, value := range values {
		f, err := ParseFormat(value)
		if err != nil {
			return nil, err
		}
		set[f] = struct{}{}
	}
	return set, nil
}

// Has reports whether f is in the set.
func (s FormatSet) Has(f Format) bool {
	_, ok := s[f]
	return ok
}

// Without returns a copy of the set excluding the given formats.
func (s FormatSet) Without(formats ...Format) FormatSet {
	out := make(FormatSet, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	for _, f := range formats {
		delete(out, f)
	}
	return out
}

// Sorted returns the set members in display order.
func (s FormatSet) Sorted() []Format {
	out := make([]Format, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	order := make(map[Format]int, len(allFormats))
	for i, f := range allFormats {
		order[f] = i
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return out[i] < out[j]
	})
	return out
}

// Strings returns the set as sorted tags.
func (s FormatSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, f := range sorted {
		out[i] = string(f)
	}
	return out
}
