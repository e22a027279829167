package frameproc_test

import (
	"errors"
	"testing"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/decoder"
	"shelfscan/internal/frame"
	"shelfscan/internal/frameproc"
	"shelfscan/internal/stabilizer"
	"shelfscan/internal/testsupport"
)

type fakeDecoder struct {
	calls int
	codes []barcode.DecodedCode
	err   error
}

func (d *fakeDecoder) Decode(*frame.Frame) ([]barcode.DecodedCode, error) {
	d.calls++
	return d.codes, d.err
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func qrCode(payload string) barcode.DecodedCode {
	return barcode.DecodedCode{
		Payload: payload,
		Format:  barcode.FormatQR,
		Polygon: []barcode.Point{{X: 10, Y: 10}, {X: 40, Y: 10}, {X: 40, Y: 40}, {X: 10, Y: 40}},
	}
}

func TestFrameSkipAdmitsEveryNthFrame(t *testing.T) {
	dec := &fakeDecoder{}
	p := frameproc.New(dec, nil, frameproc.Options{FrameSkip: 5})
	f := testsupport.BlankFrame(64, 64)

	admitted := 0
	for i := 0; i < 50; i++ {
		if p.OnFrame(f).Admitted {
			admitted++
		}
	}
	if dec.calls != 10 || admitted != 10 {
		t.Fatalf("expected 10 decodes for 50 frames, got calls=%d admitted=%d", dec.calls, admitted)
	}
}

func TestNonAdmittedFramesRedrawLastOverlay(t *testing.T) {
	dec := &fakeDecoder{codes: []barcode.DecodedCode{qrCode("X")}}
	p := frameproc.New(dec, nil, frameproc.Options{FrameSkip: 3, RedrawOverlay: true})
	f := testsupport.BlankFrame(64, 64)

	first := p.OnFrame(f)
	if !first.Admitted || len(first.Codes) != 1 {
		t.Fatalf("expected admitted frame with one code, got %+v", first)
	}
	if first.Annotated == f {
		t.Fatal("expected annotated copy on admitted frame")
	}

	second := p.OnFrame(f)
	if second.Admitted {
		t.Fatal("second frame should be skipped")
	}
	if second.Annotated == f {
		t.Fatal("expected last overlay redrawn on skipped frame")
	}
	if len(second.Codes) != 0 || len(second.Events) != 0 {
		t.Fatalf("skipped frame must not report codes or events: %+v", second)
	}
}

func TestNonAdmittedFramesPassThroughWithoutRedraw(t *testing.T) {
	dec := &fakeDecoder{codes: []barcode.DecodedCode{qrCode("X")}}
	p := frameproc.New(dec, nil, frameproc.Options{FrameSkip: 2})
	f := testsupport.BlankFrame(64, 64)

	p.OnFrame(f)
	if got := p.OnFrame(f); got.Annotated != f {
		t.Fatal("expected untouched frame when redraw is disabled")
	}
}

func TestAdmittedTicksFeedStabilizer(t *testing.T) {
	dec := &fakeDecoder{codes: []barcode.DecodedCode{qrCode("HW000001")}}
	clock := &fakeClock{now: time.Unix(500, 0)}
	stab := stabilizer.New(stabilizer.Options{Threshold: 3, Cooldown: 3 * time.Second})
	p := frameproc.New(dec, stab, frameproc.Options{FrameSkip: 2, Clock: clock.Now})
	f := testsupport.BlankFrame(64, 64)

	var events []barcode.ScanEvent
	for i := 0; i < 6; i++ {
		clock.now = clock.now.Add(100 * time.Millisecond)
		events = append(events, p.OnFrame(f).Events...)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event after three admitted ticks, got %+v", events)
	}
	if events[0].Payload != "HW000001" {
		t.Fatalf("unexpected payload %q", events[0].Payload)
	}
}

func TestDecodeErrorsCountAsEmptyTick(t *testing.T) {
	dec := &fakeDecoder{err: &barcode.DecodeError{Family: "qr", Err: errors.New("checksum")}}
	p := frameproc.New(dec, stabilizer.New(stabilizer.Options{}), frameproc.Options{FrameSkip: 1})
	res := p.OnFrame(testsupport.BlankFrame(64, 64))
	if !res.Admitted || len(res.Codes) != 0 || len(res.Events) != 0 {
		t.Fatalf("expected empty admitted tick, got %+v", res)
	}
}

func TestResetRestartsCounter(t *testing.T) {
	dec := &fakeDecoder{}
	p := frameproc.New(dec, nil, frameproc.Options{FrameSkip: 5})
	f := testsupport.BlankFrame(64, 64)
	p.OnFrame(f)
	p.OnFrame(f)
	p.Reset()
	if p.Frames() != 0 {
		t.Fatalf("expected counter reset, got %d", p.Frames())
	}
	if !p.OnFrame(f).Admitted {
		t.Fatal("first frame after reset should be admitted")
	}
}

func TestProcessorWithRealDecoder(t *testing.T) {
	f := testsupport.QRFrame(t, "LOC00007", 240, 240)
	p := frameproc.New(decoder.New(decoder.Options{}), nil, frameproc.Options{FrameSkip: 1})
	res := p.OnFrame(f)
	if len(res.Codes) != 1 || res.Codes[0].Payload != "LOC00007" {
		t.Fatalf("expected decoded QR, got %+v", res.Codes)
	}
	if res.Annotated.Width != f.Width || res.Annotated.Height != f.Height {
		t.Fatalf("annotated frame changed size")
	}
}
