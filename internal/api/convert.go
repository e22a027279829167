package api

import (
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/deps"
	"shelfscan/internal/inventory"
	"shelfscan/internal/lookup"
	"shelfscan/internal/preflight"
	"shelfscan/internal/session"
)

// FromCode converts a decoded code to its API representation.
func FromCode(code barcode.DecodedCode) Code {
	dto := Code{
		Payload: code.Payload,
		Format:  string(code.Format),
		Label:   code.Label(),
		Polygon: make([]Point, len(code.Polygon)),
		Quality: code.Quality,
	}
	for i, p := range code.Polygon {
		dto.Polygon[i] = Point{X: p.X, Y: p.Y}
	}
	return dto
}

// FromCodes converts a list of decoded codes; the result is never nil.
func FromCodes(codes []barcode.DecodedCode) []Code {
	out := make([]Code, 0, len(codes))
	for _, code := range codes {
		out = append(out, FromCode(code))
	}
	return out
}

// FromItemRef converts a matched item.
func FromItemRef(item *barcode.ItemRef) *Item {
	if item == nil {
		return nil
	}
	return &Item{
		ID:       item.ID,
		Kind:     item.Kind,
		Name:     item.Name,
		Serial:   item.Serial,
		Location: item.Location,
		Status:   item.Status,
	}
}

// FromEvent converts a scan event.
func FromEvent(ev barcode.ScanEvent) Event {
	return Event{
		ID:          ev.ID,
		Payload:     ev.Payload,
		Format:      string(ev.Format),
		FirstSeenAt: formatTime(ev.FirstSeenAt),
		EmittedAt:   formatTime(ev.EmittedAt),
		Item:        FromItemRef(ev.MatchedItem),
	}
}

// FromResult converts a lookup result.
func FromResult(res lookup.Result) LookupResult {
	return LookupResult{Event: FromEvent(res.Event), Status: string(res.Status)}
}

// FromResults converts lookup results; the result is never nil.
func FromResults(results []lookup.Result) []LookupResult {
	out := make([]LookupResult, 0, len(results))
	for _, res := range results {
		out = append(out, FromResult(res))
	}
	return out
}

// FromSnapshot converts the latest-result slot. The frame itself is omitted.
func FromSnapshot(snap session.Snapshot) LatestResult {
	dto := LatestResult{
		SessionID:    snap.SessionID,
		Mode:         string(snap.Mode),
		Active:       snap.Active,
		State:        string(snap.State),
		HasFrame:     snap.Frame != nil,
		FrameSeq:     snap.FrameSeq,
		Codes:        FromCodes(snap.Codes),
		LookupStatus: string(snap.LookupStatus),
		Recent:       FromResults(snap.Recent),
		Frames:       snap.Frames,
		Events:       snap.Events,
		Dropped:      snap.Dropped,
		UpdatedAt:    formatTime(snap.UpdatedAt),
	}
	if snap.Event != nil {
		ev := FromEvent(*snap.Event)
		dto.Event = &ev
	}
	if snap.Camera != nil {
		dto.Camera = &CameraStatus{
			Kind:     string(snap.Camera.Kind),
			Device:   snap.Camera.Device,
			Message:  snap.Camera.Message,
			Guidance: snap.Camera.Guidance,
		}
	}
	return dto
}

// FromSettings converts session settings.
func FromSettings(s session.Settings) SessionSettings {
	return SessionSettings{
		FrameSkip:       s.FrameSkip,
		StreakThreshold: s.StreakThreshold,
		CooldownSeconds: s.Cooldown.Seconds(),
		Stability:       string(s.Policy),
		WindowSeconds:   s.Window.Seconds(),
		RedrawOverlay:   s.RedrawOverlay,
	}
}

// FromDependencies converts dependency statuses.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Formats:     dep.Formats,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

// FromScanRecord converts a scan history row.
func FromScanRecord(rec inventory.ScanRecord) HistoryEntry {
	return HistoryEntry{
		ID:        rec.ID,
		EventID:   rec.EventID,
		SessionID: rec.SessionID,
		Payload:   rec.Payload,
		Format:    string(rec.Format),
		Status:    rec.Status,
		ItemID:    rec.ItemID,
		ScannedAt: formatTime(rec.ScannedAt),
	}
}

// FromScanRecords converts scan history; the result is never nil.
func FromScanRecords(records []inventory.ScanRecord) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, FromScanRecord(rec))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
