package decoder_test

import (
	"errors"
	"image"
	"testing"

	"shelfscan/internal/barcode"
	"shelfscan/internal/decoder"
	"shelfscan/internal/frame"
	"shelfscan/internal/testsupport"
)

func TestDecodeSingleQR(t *testing.T) {
	dec := decoder.New(decoder.Options{})
	f := testsupport.QRFrame(t, "HW000123", 320, 240)

	codes, err := dec.Decode(f)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(codes) != 1 {
		t.Fatalf("expected exactly one code, got %d: %+v", len(codes), codes)
	}
	code := codes[0]
	if code.Payload != "HW000123" {
		t.Fatalf("unexpected payload %q", code.Payload)
	}
	if code.Format != barcode.FormatQR {
		t.Fatalf("unexpected format %q", code.Format)
	}
	if len(code.Polygon) < 4 {
		t.Fatalf("expected polygon with at least 4 points, got %v", code.Polygon)
	}
	bounds := code.Bounds()
	if !bounds.Overlaps(f.Bounds()) {
		t.Fatalf("polygon %v outside frame", bounds)
	}
}

func TestDecodeBlankImageReturnsEmpty(t *testing.T) {
	dec := decoder.New(decoder.Options{})
	codes, err := dec.Decode(testsupport.BlankFrame(320, 240))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(codes) != 0 {
		t.Fatalf("expected no codes, got %+v", codes)
	}
}

func TestDecodeReportsDuplicateLabelsAtDifferentPositions(t *testing.T) {
	symbol := testsupport.QRImage(t, "LOC00042", 150)
	canvas := testsupport.Canvas(520, 220)
	testsupport.Paste(canvas, symbol, image.Pt(20, 35))
	testsupport.Paste(canvas, symbol, image.Pt(350, 35))

	dec := decoder.New(decoder.Options{Formats: barcode.NewFormatSet(barcode.FormatQR)})
	codes, err := dec.Decode(testsupport.GrayToRGB(canvas))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected both labels, got %d: %+v", len(codes), codes)
	}
	left, right := codes[0].Bounds(), codes[1].Bounds()
	if left.Min.X > right.Min.X {
		left, right = right, left
	}
	if left.Max.X > 260 || right.Min.X < 260 {
		t.Fatalf("expected one code per half, got %v and %v", left, right)
	}
	for _, c := range codes {
		if c.Payload != "LOC00042" {
			t.Fatalf("unexpected payload %q", c.Payload)
		}
	}
}

func TestDecodeLinearCode(t *testing.T) {
	symbol := testsupport.Code128Image(t, "CB000017", 300, 80)
	canvas := testsupport.Canvas(360, 140)
	testsupport.Paste(canvas, symbol, image.Pt(30, 30))

	dec := decoder.New(decoder.Options{Formats: barcode.NewFormatSet(barcode.FormatCode128)})
	codes, err := dec.Decode(testsupport.GrayToRGB(canvas))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(codes) != 1 {
		t.Fatalf("expected one code, got %+v", codes)
	}
	if codes[0].Format != barcode.FormatCode128 || codes[0].Payload != "CB000017" {
		t.Fatalf("unexpected code %+v", codes[0])
	}
	if len(codes[0].Polygon) < 4 {
		t.Fatalf("expected band polygon, got %v", codes[0].Polygon)
	}
}

func TestDecodeRespectsEnabledFormats(t *testing.T) {
	dec := decoder.New(decoder.Options{Formats: barcode.NewFormatSet(barcode.FormatCode128)})
	codes, err := dec.Decode(testsupport.QRFrame(t, "HW000123", 320, 240))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(codes) != 0 {
		t.Fatalf("expected QR to be ignored when disabled, got %+v", codes)
	}
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	dec := decoder.New(decoder.Options{})
	tests := []struct {
		name  string
		frame *frame.Frame
	}{
		{"nil", nil},
		{"below minimum", testsupport.BlankFrame(16, 16)},
		{"short buffer", &frame.Frame{Width: 64, Height: 64, Stride: 192, Layout: frame.LayoutRGB24, Pix: make([]byte, 100)}},
		{"unknown layout", &frame.Frame{Width: 64, Height: 64, Stride: 64, Layout: "yuyv", Pix: make([]byte, 64*64)}},
		{"overflowing width", &frame.Frame{Width: 1 << 62, Height: 32, Layout: frame.LayoutRGBA32}},
		{"overflowing stride", &frame.Frame{Width: 32, Height: 32, Stride: 1 << 61, Layout: frame.LayoutRGB24, Pix: make([]byte, 96)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.Decode(tt.frame)
			if !errors.Is(err, barcode.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	f := testsupport.QRFrame(t, "HW000001", 200, 200)
	before := append([]byte(nil), f.Pix...)
	if _, err := decoder.New(decoder.Options{}).Decode(f); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	for i := range before {
		if before[i] != f.Pix[i] {
			t.Fatalf("frame mutated at byte %d", i)
		}
	}
}

func TestPDF417IsReportedAsMissingCapability(t *testing.T) {
	dec := decoder.New(decoder.Options{})

	if dec.Enabled().Has(barcode.FormatPDF417) {
		t.Fatal("expected pdf417 removed from the enabled set")
	}
	if !dec.Enabled().Has(barcode.FormatQR) {
		t.Fatal("expected qr to stay enabled")
	}
	missing := dec.Missing()
	if len(missing) != 1 || missing[0].Family != "pdf417" {
		t.Fatalf("expected pdf417 missing, got %+v", missing)
	}
	var found bool
	for _, c := range dec.Capabilities() {
		if c.Family == "pdf417" {
			found = true
			if c.Available || !c.Requested || c.Reason == "" {
				t.Fatalf("unexpected pdf417 capability %+v", c)
			}
		}
	}
	if !found {
		t.Fatal("pdf417 missing from capabilities")
	}
}

func TestMissingCapabilityNotReportedWhenNotRequested(t *testing.T) {
	dec := decoder.New(decoder.Options{Formats: barcode.NewFormatSet(barcode.FormatQR)})
	if len(dec.Missing()) != 0 {
		t.Fatalf("expected no missing capabilities, got %+v", dec.Missing())
	}
}
