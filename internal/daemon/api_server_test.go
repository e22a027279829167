package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"shelfscan/internal/api"
	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/config"
	"shelfscan/internal/decoder"
	"shelfscan/internal/inventory"
	"shelfscan/internal/lookup"
	"shelfscan/internal/session"
	"shelfscan/internal/testsupport"
)

type fixture struct {
	cfg    *config.Config
	store  *inventory.Store
	daemon *Daemon
	srv    *apiServer
}

func newFixture(t *testing.T, source camera.Source, repo inventory.Repository, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	if repo == nil {
		repo = store
	}
	dec := decoder.New(decoder.Options{})
	sess, err := session.New(session.Options{
		Decoder:  dec,
		Lookup:   lookup.New(repo, lookup.Options{History: store}),
		Source:   source,
		LockPath: cfg.DeviceLockPath,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { _ = sess.Stop() })

	d, err := New(cfg, Dependencies{Session: sess, Decoder: dec, Repository: repo, Store: store, Source: source}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv, err := newAPIServer(cfg, d, nil)
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	return &fixture{cfg: cfg, store: store, daemon: d, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.srv.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %T: %v (body %s)", out, err, w.Body.String())
	}
	return out
}

func twoCodePNG(t *testing.T) []byte {
	t.Helper()
	canvas := testsupport.Canvas(520, 220)
	testsupport.Paste(canvas, testsupport.QRImage(t, "HW000001", 150), image.Pt(20, 35))
	testsupport.Paste(canvas, testsupport.QRImage(t, "CB000002", 150), image.Pt(350, 35))
	return testsupport.PNGBytes(t, canvas)
}

func TestLatestStartsIdle(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := f.do(t, http.MethodGet, "/api/latest", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	latest := decode[api.LatestResult](t, w)
	if latest.State != string(session.StateIdle) || latest.Active || latest.HasFrame {
		t.Fatalf("unexpected idle snapshot: %+v", latest)
	}

	if w := f.do(t, http.MethodGet, "/api/latest/frame.png", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing frame, got %d", w.Code)
	}
}

func TestAuthRequiresBearerToken(t *testing.T) {
	f := newFixture(t, nil, nil, testsupport.WithAPIToken("secret"))

	if w := f.do(t, http.MethodGet, "/api/latest", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	bad := http.Header{"Authorization": {"Bearer nope"}}
	if w := f.do(t, http.MethodGet, "/api/latest", nil, bad); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	good := http.Header{"Authorization": {"Bearer secret"}}
	if w := f.do(t, http.MethodGet, "/api/latest", nil, good); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestRoutingErrors(t *testing.T) {
	f := newFixture(t, nil, nil)
	tests := []struct {
		method, path string
		wantCode     int
		wantError    string
	}{
		{http.MethodGet, "/api/session/start", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodPost, "/api/status", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodDelete, "/api/items/HW000001", http.StatusMethodNotAllowed, "method not allowed"},
		{http.MethodGet, "/api/nope", http.StatusNotFound, "not found"},
		{http.MethodGet, "/elsewhere", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		w := f.do(t, tt.method, tt.path, nil, nil)
		if w.Code != tt.wantCode {
			t.Fatalf("%s %s: expected %d, got %d", tt.method, tt.path, tt.wantCode, w.Code)
		}
		if resp := decode[api.ErrorResponse](t, w); resp.Error != tt.wantError {
			t.Fatalf("%s %s: error = %q, want %q", tt.method, tt.path, resp.Error, tt.wantError)
		}
	}
}

func TestScanReturnsEveryCodeWithLookup(t *testing.T) {
	f := newFixture(t, nil, nil)
	testsupport.AddItem(t, f.store, inventory.KindHardware, "Rack switch", "HW000001")

	w := f.do(t, http.MethodPost, "/api/scan", twoCodePNG(t), http.Header{"Content-Type": {"image/png"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.ScanResponse](t, w)
	if resp.Width != 520 || resp.Height != 220 || len(resp.Codes) != 2 || len(resp.Results) != 2 {
		t.Fatalf("unexpected scan response: %+v", resp)
	}
	statuses := map[string]string{}
	for _, res := range resp.Results {
		statuses[res.Event.Payload] = res.Status
		if res.Status == string(lookup.StatusFound) && (res.Event.Item == nil || res.Event.Item.Name != "Rack switch") {
			t.Fatalf("found result without item: %+v", res)
		}
	}
	if statuses["HW000001"] != "found" || statuses["CB000002"] != "not_found" {
		t.Fatalf("statuses = %v", statuses)
	}

	history := decode[api.HistoryResponse](t, f.do(t, http.MethodGet, "/api/history?limit=10", nil, nil))
	if len(history.Entries) != 2 {
		t.Fatalf("expected 2 history entries, got %+v", history.Entries)
	}
}

func TestScanAcceptsMultipartUpload(t *testing.T) {
	f := newFixture(t, nil, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("note", "ignored")
	part, err := mw.CreateFormFile("image", "label.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(twoCodePNG(t))
	_ = mw.Close()

	w := f.do(t, http.MethodPost, "/api/scan", body.Bytes(), http.Header{"Content-Type": {mw.FormDataContentType()}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[api.ScanResponse](t, w); len(resp.Codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(resp.Codes))
	}
}

func TestScanRejectsGarbage(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := f.do(t, http.MethodPost, "/api/scan", []byte("definitely not an image"), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decode[api.ErrorResponse](t, w); resp.Hint == "" {
		t.Fatal("expected hint for bad upload")
	}
}

func TestSingleImageSessionExposesAnnotatedFrame(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := f.do(t, http.MethodPost, "/api/session/start", []byte(`{"mode":"single_image"}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	if resp := decode[api.SessionResponse](t, w); !resp.Session.Active || resp.Session.Mode != "single_image" {
		t.Fatalf("unexpected session: %+v", resp.Session)
	}

	if w := f.do(t, http.MethodPost, "/api/scan", twoCodePNG(t), nil); w.Code != http.StatusOK {
		t.Fatalf("scan: %d", w.Code)
	}
	frameResp := f.do(t, http.MethodGet, "/api/latest/frame.png", nil, nil)
	if frameResp.Code != http.StatusOK || frameResp.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("frame: %d %q", frameResp.Code, frameResp.Header().Get("Content-Type"))
	}
	latest := decode[api.LatestResult](t, f.do(t, http.MethodGet, "/api/latest", nil, nil))
	if len(latest.Codes) != 2 || !latest.HasFrame {
		t.Fatalf("latest not updated: %+v", latest)
	}

	w = f.do(t, http.MethodPost, "/api/session/stop", nil, nil)
	if resp := decode[api.SessionResponse](t, w); resp.Session.Active {
		t.Fatal("session still active after stop")
	}
}

func TestSessionStartErrors(t *testing.T) {
	f := newFixture(t, nil, nil)
	if w := f.do(t, http.MethodPost, "/api/session/start", []byte(`{"mode":"sideways"}`), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown mode: expected 400, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/session/start", []byte(`{`), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", w.Code)
	}
	// No camera source configured for a live session.
	if w := f.do(t, http.MethodPost, "/api/session/start", nil, nil); w.Code != http.StatusConflict {
		t.Fatalf("no source: expected 409, got %d", w.Code)
	}
	latest := decode[api.LatestResult](t, f.do(t, http.MethodGet, "/api/latest", nil, nil))
	if latest.State != string(session.StateCameraUnavailable) || latest.Camera == nil {
		t.Fatalf("camera failure not surfaced: %+v", latest)
	}
}

func TestSessionStartReportsCameraGuidance(t *testing.T) {
	src := camera.NewReplaySource(t.TempDir()+"/missing", 10, false, nil)
	f := newFixture(t, src, nil)
	w := f.do(t, http.MethodPost, "/api/session/start", []byte(`{"mode":"live"}`), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if resp := decode[api.ErrorResponse](t, w); resp.Hint == "" {
		t.Fatal("expected camera guidance in hint")
	}
}

func TestPushedFramesReachLiveSession(t *testing.T) {
	push := camera.NewPushSource("test")
	f := newFixture(t, push, nil, testsupport.WithScanner(1, 2, 60))
	testsupport.AddItem(t, f.store, inventory.KindHardware, "Rack switch", "HW000001")

	qr := testsupport.QRFrame(t, "HW000001", 320, 240)
	query := "/api/session/frame?width=320&height=240&layout=rgb24&stride=" + strconv.Itoa(qr.Stride)

	if w := f.do(t, http.MethodPost, query, qr.Pix, nil); w.Code != http.StatusConflict {
		t.Fatalf("push without session: expected 409, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/session/start", []byte(`{"mode":"live"}`), nil); w.Code != http.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	for i := 0; i < 2; i++ {
		if w := f.do(t, http.MethodPost, query, qr.Pix, nil); w.Code != http.StatusAccepted {
			t.Fatalf("push %d: %d %s", i, w.Code, w.Body.String())
		}
	}
	latest := decode[api.LatestResult](t, f.do(t, http.MethodGet, "/api/latest", nil, nil))
	if latest.Frames != 2 || latest.Events != 1 || latest.Event == nil || latest.Event.Payload != "HW000001" {
		t.Fatalf("unexpected latest after pushes: %+v", latest)
	}

	if w := f.do(t, http.MethodPost, "/api/session/frame?width=320&height=240", []byte{1, 2, 3}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("short frame: expected 400, got %d", w.Code)
	}
}

func TestPushRejectedForOtherSources(t *testing.T) {
	f := newFixture(t, nil, nil)
	if w := f.do(t, http.MethodPost, "/api/session/frame?width=1&height=1&layout=gray8", []byte{0}, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

type failingRepo struct{}

func (failingRepo) FindByCode(context.Context, string) (*barcode.ItemRef, error) {
	return nil, errors.New("connection refused")
}

func TestItemLookupDistinguishesOutcomes(t *testing.T) {
	f := newFixture(t, nil, nil)
	testsupport.AddItem(t, f.store, inventory.KindCable, "Patch cable", "CABLE-A")

	found := decode[api.ItemResponse](t, f.do(t, http.MethodGet, "/api/items/CABLE-A", nil, nil))
	if found.Status != "found" || found.Item == nil || found.Item.Name != "Patch cable" {
		t.Fatalf("unexpected found response: %+v", found)
	}
	missing := decode[api.ItemResponse](t, f.do(t, http.MethodGet, "/api/items/UNKNOWN-9", nil, nil))
	if missing.Status != "not_found" || missing.Item != nil {
		t.Fatalf("unexpected not-found response: %+v", missing)
	}

	down := newFixture(t, nil, failingRepo{})
	if w := down.do(t, http.MethodGet, "/api/items/CABLE-A", nil, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unavailable inventory, got %d", w.Code)
	}
}

func TestStatusReportsCapabilities(t *testing.T) {
	f := newFixture(t, nil, nil)
	status := decode[api.DaemonStatus](t, f.do(t, http.MethodGet, "/api/status", nil, nil))
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if len(status.EnabledFormats) == 0 {
		t.Fatal("expected enabled formats")
	}
	var sawPDF417 bool
	for _, dep := range status.Dependencies {
		if dep.Name == "decoder:pdf417" {
			sawPDF417 = true
			if dep.Available {
				t.Fatal("pdf417 reported as available")
			}
		}
	}
	if !sawPDF417 {
		t.Fatalf("pdf417 capability missing from %+v", status.Dependencies)
	}
}

func TestPruneHistoryRemovesExpiredRecords(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	old := inventory.ScanRecord{EventID: "old", Payload: "X1", Format: barcode.FormatQR, Status: "not_found", ScannedAt: time.Now().Add(-200 * 24 * time.Hour)}
	fresh := inventory.ScanRecord{EventID: "fresh", Payload: "X2", Format: barcode.FormatQR, Status: "not_found", ScannedAt: time.Now()}
	for _, rec := range []inventory.ScanRecord{old, fresh} {
		if err := f.store.RecordScan(ctx, rec); err != nil {
			t.Fatalf("RecordScan: %v", err)
		}
	}

	if removed := f.daemon.pruneHistory(ctx); removed != 1 {
		t.Fatalf("expected 1 pruned record, got %d", removed)
	}
	records, err := f.daemon.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 || records[0].EventID != "fresh" {
		t.Fatalf("unexpected history after prune: %+v", records)
	}

	f.cfg.Inventory.HistoryRetentionDays = 0
	if removed := f.daemon.pruneHistory(ctx); removed != 0 {
		t.Fatalf("retention 0 should disable pruning, got %d", removed)
	}
}
