package api

import (
	"testing"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/frame"
	"shelfscan/internal/inventory"
	"shelfscan/internal/lookup"
	"shelfscan/internal/session"
)

func TestFromSnapshot(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	ev := barcode.ScanEvent{ID: "ev-1", Payload: "HW000001", Format: barcode.FormatQR, FirstSeenAt: at, EmittedAt: at}
	found := ev.WithItem(&barcode.ItemRef{ID: 1, Kind: "hardware", Name: "Rack"})
	snap := session.Snapshot{
		SessionID: "sess",
		Mode:      session.ModeLive,
		Active:    true,
		State:     session.StateFound,
		Frame:     frame.New(4, 4, frame.LayoutGray8),
		FrameSeq:  42,
		Codes: []barcode.DecodedCode{{
			Payload: "HW000001",
			Format:  barcode.FormatQR,
			Polygon: []barcode.Point{{X: 1, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: 4}, {X: 1, Y: 4}},
		}},
		Event:        &found,
		LookupStatus: lookup.StatusFound,
		Recent:       []lookup.Result{{Event: found, Status: lookup.StatusFound}},
		Camera:       &session.CameraStatus{Kind: camera.KindBusy, Device: "/dev/video0", Guidance: "close it"},
		UpdatedAt:    at,
	}

	dto := FromSnapshot(snap)
	if dto.State != "found" || dto.Mode != "live" || !dto.HasFrame || dto.FrameSeq != 42 {
		t.Fatalf("unexpected header: %+v", dto)
	}
	if len(dto.Codes) != 1 || dto.Codes[0].Label != "QR: HW000001" || len(dto.Codes[0].Polygon) != 4 {
		t.Fatalf("unexpected codes: %+v", dto.Codes)
	}
	if dto.Event == nil || dto.Event.Item == nil || dto.Event.Item.Name != "Rack" {
		t.Fatalf("event item missing: %+v", dto.Event)
	}
	if dto.Event.EmittedAt != "2025-03-04T05:06:07.008Z" {
		t.Fatalf("unexpected timestamp format: %s", dto.Event.EmittedAt)
	}
	if dto.Camera == nil || dto.Camera.Kind != "busy" {
		t.Fatalf("camera status missing: %+v", dto.Camera)
	}
	if len(dto.Recent) != 1 || dto.Recent[0].Status != "found" {
		t.Fatalf("unexpected recent: %+v", dto.Recent)
	}
}

func TestFromSnapshotIdleHasEmptyLists(t *testing.T) {
	dto := FromSnapshot(session.Snapshot{State: session.StateIdle})
	if dto.Codes == nil || dto.Recent == nil {
		t.Fatal("lists should encode as [] rather than null")
	}
	if dto.HasFrame || dto.Event != nil || dto.UpdatedAt != "" {
		t.Fatalf("idle snapshot carries data: %+v", dto)
	}
}

func TestFromScanRecords(t *testing.T) {
	id := int64(7)
	records := []inventory.ScanRecord{{ID: 1, EventID: "e", Payload: "X", Format: barcode.FormatCode128, Status: "found", ItemID: &id, ScannedAt: time.Unix(0, 0)}}
	entries := FromScanRecords(records)
	if len(entries) != 1 || entries[0].Format != "code128" || *entries[0].ItemID != 7 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].ScannedAt != "1970-01-01T00:00:00.000Z" {
		t.Fatalf("unexpected timestamp: %s", entries[0].ScannedAt)
	}
	if FromScanRecords(nil) == nil {
		t.Fatal("expected non-nil slice")
	}
}
