package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Point is a polygon vertex in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Code is one decoded code region.
type Code struct {
	Payload string   `json:"payload"`
	Format  string   `json:"format"`
	Label   string   `json:"label"`
	Polygon []Point  `json:"polygon"`
	Quality *float64 `json:"quality,omitempty"`
}

// Item references an inventory item matched by a scan.
type Item struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Serial   string `json:"serial,omitempty"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Event is a stabilized scan event.
type Event struct {
	ID          string `json:"id"`
	Payload     string `json:"payload"`
	Format      string `json:"format"`
	FirstSeenAt string `json:"firstSeenAt,omitempty"`
	EmittedAt   string `json:"emittedAt,omitempty"`
	Item        *Item  `json:"item,omitempty"`
}

// LookupResult pairs an event with its lookup outcome.
type LookupResult struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// CameraStatus explains why the camera is unavailable.
type CameraStatus struct {
	Kind     string `json:"kind"`
	Device   string `json:"device,omitempty"`
	Message  string `json:"message"`
	Guidance string `json:"guidance"`
}

// LatestResult is the transport form of the latest-result slot.
type LatestResult struct {
	SessionID    string         `json:"sessionId,omitempty"`
	Mode         string         `json:"mode,omitempty"`
	Active       bool           `json:"active"`
	State        string         `json:"state"`
	HasFrame     bool           `json:"hasFrame"`
	FrameSeq     uint64         `json:"frameSeq"`
	Codes        []Code         `json:"codes"`
	Event        *Event         `json:"event,omitempty"`
	LookupStatus string         `json:"lookupStatus,omitempty"`
	Recent       []LookupResult `json:"recent"`
	Camera       *CameraStatus  `json:"camera,omitempty"`
	Frames       uint64         `json:"frames"`
	Events       uint64         `json:"events"`
	Dropped      uint64         `json:"dropped"`
	UpdatedAt    string         `json:"updatedAt,omitempty"`
}

// SessionSettings mirrors the tuning knobs of the running session.
type SessionSettings struct {
	FrameSkip       int     `json:"frameSkip"`
	StreakThreshold int     `json:"streakThreshold"`
	CooldownSeconds float64 `json:"cooldownSeconds"`
	Stability       string  `json:"stability"`
	WindowSeconds   float64 `json:"windowSeconds,omitempty"`
	RedrawOverlay   bool    `json:"redrawOverlay"`
}

// SessionStatus summarizes the scan session.
type SessionStatus struct {
	Active   bool            `json:"active"`
	Mode     string          `json:"mode,omitempty"`
	ID       string          `json:"id,omitempty"`
	State    string          `json:"state"`
	Settings SessionSettings `json:"settings"`
}

// StartSessionRequest starts a session. Zero-valued overrides keep the
// configured values.
type StartSessionRequest struct {
	Mode            string   `json:"mode"`
	FrameSkip       int      `json:"frameSkip,omitempty"`
	StreakThreshold int      `json:"streakThreshold,omitempty"`
	CooldownSeconds *float64 `json:"cooldownSeconds,omitempty"`
}

// SessionResponse is returned by session start and stop.
type SessionResponse struct {
	Session SessionStatus `json:"session"`
	Message string        `json:"message,omitempty"`
}

// DependencyStatus captures availability of an external dependency or decoder family.
type DependencyStatus struct {
	Name        string   `json:"name"`
	Command     string   `json:"command,omitempty"`
	Description string   `json:"description"`
	Formats     []string `json:"formats,omitempty"`
	Optional    bool     `json:"optional"`
	Available   bool     `json:"available"`
	Detail      string   `json:"detail,omitempty"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	StartedAt      string             `json:"startedAt,omitempty"`
	LockFilePath   string             `json:"lockFilePath"`
	Inventory      string             `json:"inventory"`
	EnabledFormats []string           `json:"enabledFormats"`
	Session        SessionStatus      `json:"session"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	Checks         []CheckResult      `json:"checks,omitempty"`
}

// ScanResponse lists every code found in an uploaded image.
type ScanResponse struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Codes   []Code         `json:"codes"`
	Results []LookupResult `json:"results"`
}

// ItemResponse is the direct lookup of a code.
type ItemResponse struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Item   *Item  `json:"item,omitempty"`
}

// HistoryEntry is one recorded lookup outcome.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	EventID   string `json:"eventId"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   string `json:"payload"`
	Format    string `json:"format,omitempty"`
	Status    string `json:"status"`
	ItemID    *int64 `json:"itemId,omitempty"`
	ScannedAt string `json:"scannedAt"`
}

// HistoryResponse wraps recent scan history.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}
