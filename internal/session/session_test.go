package session_test

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/decoder"
	"shelfscan/internal/frame"
	"shelfscan/internal/inventory"
	"shelfscan/internal/lookup"
	"shelfscan/internal/session"
	"shelfscan/internal/testsupport"
)

type mapRepo struct {
	items map[string]*barcode.ItemRef
	err   error
}

func (m *mapRepo) FindByCode(_ context.Context, payload string) (*barcode.ItemRef, error) {
	if m.err != nil {
		return nil, m.err
	}
	if item, ok := m.items[payload]; ok {
		return item, nil
	}
	return nil, inventory.ErrNotFound
}

// pushSource delivers the same frame in a tight loop until closed.
type pushSource struct {
	device  string
	frame   *frame.Frame
	openErr error

	opens  atomic.Int32
	closes atomic.Int32
	// gate, when set, blocks the first deliver call until closed.
	gate    chan struct{}
	entered chan struct{}
}

func (p *pushSource) Device() string { return p.device }

func (p *pushSource) Open(context.Context) (camera.Stream, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.opens.Add(1)
	return &pushStream{src: p, stop: make(chan struct{}), done: make(chan struct{})}, nil
}

type pushStream struct {
	src       *pushSource
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *pushStream) Start(deliver func(*frame.Frame)) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		var seq uint64
		first := true
		for {
			select {
			case <-s.stop:
				return
			default:
			}
			if first && s.src.gate != nil {
				first = false
				close(s.src.entered)
				deliverGated(deliver, s.src.frame.WithMeta(seq, time.Now()), s.src.gate)
			} else {
				deliver(s.src.frame.WithMeta(seq, time.Now()))
			}
			seq++
			time.Sleep(time.Millisecond)
		}
	}()
	return nil
}

func deliverGated(deliver func(*frame.Frame), f *frame.Frame, gate <-chan struct{}) {
	<-gate
	deliver(f)
}

func (s *pushStream) Done() <-chan struct{} { return s.done }
func (s *pushStream) Err() error            { return nil }
func (s *pushStream) Close() error {
	s.closeOnce.Do(func() {
		s.src.closes.Add(1)
		close(s.stop)
	})
	s.wg.Wait()
	return nil
}

func newSession(t *testing.T, src camera.Source, repo inventory.Repository) *session.Session {
	t.Helper()
	lockDir := t.TempDir()
	sess, err := session.New(session.Options{
		Decoder:  decoder.New(decoder.Options{Formats: barcode.NewFormatSet(barcode.FormatQR)}),
		Lookup:   lookup.New(repo, lookup.Options{Timeout: time.Second}),
		Source:   src,
		LockPath: func(device string) string { return filepath.Join(lockDir, filepath.Base(device)+".lock") },
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { _ = sess.Stop() })
	return sess
}

func fastSettings() session.Settings {
	return session.Settings{FrameSkip: 1, StreakThreshold: 3, Cooldown: time.Hour, RedrawOverlay: true}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLiveSessionEmitsResolvedEvent(t *testing.T) {
	src := &pushSource{device: "/dev/video0", frame: testsupport.QRFrame(t, "HW000001", 320, 240)}
	repo := &mapRepo{items: map[string]*barcode.ItemRef{"HW000001": {ID: 1, Kind: "hardware", Name: "Rack"}}}
	sess := newSession(t, src, repo)

	if err := sess.Start(context.Background(), session.ModeLive, fastSettings()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "found state", func() bool { return sess.Latest().State == session.StateFound })

	snap := sess.Latest()
	if !snap.Active || snap.Mode != session.ModeLive || snap.SessionID == "" {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
	if snap.Event == nil || snap.Event.MatchedItem == nil || snap.Event.MatchedItem.Name != "Rack" {
		t.Fatalf("event not resolved: %+v", snap.Event)
	}
	if snap.Frame == nil || snap.Frame.Width != 320 || snap.Frame.Height != 240 {
		t.Fatalf("annotated frame has wrong size: %+v", snap.Frame)
	}
	if snap.Events != 1 {
		t.Fatalf("cooldown violated: %d events", snap.Events)
	}

	if err := sess.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if src.closes.Load() != 1 {
		t.Fatalf("camera released %d times", src.closes.Load())
	}
	after := sess.Latest()
	if after.Active {
		t.Fatal("slot still active after Stop")
	}
	if after.Event == nil {
		t.Fatal("last event should remain readable after Stop")
	}
}

func TestStopDuringCallbackReleasesOnce(t *testing.T) {
	src := &pushSource{
		device:  "/dev/video0",
		frame:   testsupport.BlankFrame(64, 64),
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	sess := newSession(t, src, &mapRepo{})

	if err := sess.Start(context.Background(), session.ModeLive, fastSettings()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-src.entered

	stopped := make(chan error, 1)
	go func() { stopped <- sess.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a frame callback was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(src.gate)
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after callback finished")
	}

	if err := sess.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if got := src.closes.Load(); got != 1 {
		t.Fatalf("release hook called %d times, want 1", got)
	}

	// A new Start acquires again and a Stop releases again: once per Start.
	src.gate = nil
	if err := sess.Start(context.Background(), session.ModeLive, fastSettings()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := sess.Stop(); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
	if got, opens := src.closes.Load(), src.opens.Load(); got != opens || got != 2 {
		t.Fatalf("opens=%d closes=%d", opens, got)
	}
}

func TestStartFailureLeavesNothingAcquired(t *testing.T) {
	src := &pushSource{
		device:  "/dev/video0",
		openErr: &camera.Error{Kind: camera.KindPermission, Device: "/dev/video0", Err: errors.New("denied")},
	}
	sess := newSession(t, src, &mapRepo{})

	err := sess.Start(context.Background(), session.ModeLive, fastSettings())
	if camera.KindOf(err) != camera.KindPermission {
		t.Fatalf("expected permission error, got %v", err)
	}
	if sess.Active() {
		t.Fatal("session active after failed start")
	}
	snap := sess.Latest()
	if snap.State != session.StateCameraUnavailable || snap.Camera == nil || snap.Camera.Guidance == "" {
		t.Fatalf("camera failure not surfaced: %+v", snap)
	}
	if snap.Camera.Kind != camera.KindPermission {
		t.Fatalf("camera kind = %s", snap.Camera.Kind)
	}

	// The device lock must have been released.
	src.openErr = nil
	src.frame = testsupport.BlankFrame(64, 64)
	if err := sess.Start(context.Background(), session.ModeLive, fastSettings()); err != nil {
		t.Fatalf("start after failure: %v", err)
	}
}

func TestDeviceRemovedStopsSession(t *testing.T) {
	src := &pushSource{device: "/dev/video0", frame: testsupport.BlankFrame(64, 64)}
	sess := newSession(t, src, &mapRepo{})
	if err := sess.Start(context.Background(), session.ModeLive, fastSettings()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "no_code state", func() bool { return sess.Latest().State == session.StateNoCode })

	sess.DeviceRemoved("/dev/video1")
	if !sess.Active() {
		t.Fatal("foreign device removal stopped the session")
	}
	sess.DeviceRemoved("/dev/video0")
	if sess.Active() {
		t.Fatal("session still active after its device was removed")
	}
	snap := sess.Latest()
	if snap.State != session.StateCameraUnavailable || snap.Camera.Kind != camera.KindDisconnected {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if src.closes.Load() != 1 {
		t.Fatalf("closes = %d", src.closes.Load())
	}
}

type panicDecoder struct {
	calls atomic.Int32
}

func (p *panicDecoder) Decode(*frame.Frame) ([]barcode.DecodedCode, error) {
	if p.calls.Add(1) == 1 {
		panic("decoder exploded")
	}
	return nil, nil
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	src := &pushSource{device: "/dev/video0", frame: testsupport.BlankFrame(64, 64)}
	dec := &panicDecoder{}
	sess, err := session.New(session.Options{Decoder: dec, Source: src})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sess.Start(context.Background(), session.ModeLive, fastSettings()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "frames after panic", func() bool { return dec.calls.Load() > 3 })
	if err := sess.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if src.closes.Load() != 1 {
		t.Fatalf("closes = %d", src.closes.Load())
	}
}

func twoCodeFrame(t *testing.T) *frame.Frame {
	t.Helper()
	canvas := testsupport.Canvas(520, 220)
	testsupport.Paste(canvas, testsupport.QRImage(t, "HW000001", 150), image.Pt(20, 35))
	testsupport.Paste(canvas, testsupport.QRImage(t, "CB000002", 150), image.Pt(350, 35))
	return testsupport.GrayToRGB(canvas)
}

func payloads(codes []barcode.DecodedCode) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, c.Payload)
	}
	sort.Strings(out)
	return out
}

func TestSubmitImageReportsEveryCodeWithoutDebounce(t *testing.T) {
	sess := newSession(t, nil, &mapRepo{})
	img := twoCodeFrame(t)

	for i := 0; i < 2; i++ {
		codes, err := sess.SubmitImage(img)
		if err != nil {
			t.Fatalf("SubmitImage: %v", err)
		}
		got := payloads(codes)
		if len(got) != 2 || got[0] != "CB000002" || got[1] != "HW000001" {
			t.Fatalf("call %d returned %v", i, got)
		}
	}

	if _, err := sess.SubmitImage(testsupport.BlankFrame(8, 8)); !errors.Is(err, barcode.ErrInvalidInput) {
		t.Fatalf("expected invalid input for tiny image, got %v", err)
	}
}

func TestSingleImageSessionPublishesResults(t *testing.T) {
	repo := &mapRepo{items: map[string]*barcode.ItemRef{"HW000001": {ID: 1, Name: "Rack"}}}
	sess := newSession(t, nil, repo)
	if err := sess.Start(context.Background(), session.ModeSingleImage, session.Settings{}); err != nil {
		t.Fatalf("Start single image: %v", err)
	}

	codes, err := sess.SubmitImage(twoCodeFrame(t))
	if err != nil {
		t.Fatalf("SubmitImage: %v", err)
	}
	results := sess.ResolveCodes(context.Background(), codes)
	statuses := map[string]lookup.Status{}
	for _, res := range results {
		statuses[res.Event.Payload] = res.Status
	}
	if statuses["HW000001"] != lookup.StatusFound || statuses["CB000002"] != lookup.StatusNotFound {
		t.Fatalf("statuses = %v", statuses)
	}

	snap := sess.Latest()
	if len(snap.Codes) != 2 || len(snap.Recent) != 2 || snap.Frame == nil {
		t.Fatalf("snapshot not updated: codes=%d recent=%d", len(snap.Codes), len(snap.Recent))
	}
}

func TestResolveCodesReportsUnavailable(t *testing.T) {
	sess := newSession(t, nil, &mapRepo{err: errors.New("connection refused")})
	results := sess.ResolveCodes(context.Background(), []barcode.DecodedCode{{Payload: "X", Format: barcode.FormatQR}})
	if len(results) != 1 || results[0].Status != lookup.StatusUnavailable {
		t.Fatalf("results = %+v", results)
	}
}

func TestLiveStartWithoutSource(t *testing.T) {
	sess := newSession(t, nil, &mapRepo{})
	if err := sess.Start(context.Background(), session.ModeLive, fastSettings()); !errors.Is(err, session.ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
	if err := sess.Start(context.Background(), session.Mode("bogus"), fastSettings()); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
