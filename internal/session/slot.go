package session

import (
	"sync"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/frame"
	"shelfscan/internal/lookup"
)

// State summarises what a client should display.
type State string

const (
	StateIdle              State = "idle"
	StateNoCode            State = "no_code"
	StateScanning          State = "scanning"
	StateLookingUp         State = "looking_up"
	StateFound             State = "found"
	StateNotFound          State = "not_found"
	StateLookupUnavailable State = "lookup_unavailable"
	StateCameraUnavailable State = "camera_unavailable"
)

// LookupPending marks an event whose lookup has not completed.
const LookupPending lookup.Status = "pending"

const recentLimit = 10

// CameraStatus describes why the camera is unavailable.
type CameraStatus struct {
	Kind     camera.Kind `json:"kind"`
	Device   string      `json:"device,omitempty"`
	Message  string      `json:"message"`
	Guidance string      `json:"guidance"`
}

// Snapshot is a copy of the latest-result slot.
type Snapshot struct {
	SessionID    string                `json:"sessionId,omitempty"`
	Mode         Mode                  `json:"mode,omitempty"`
	Active       bool                  `json:"active"`
	State        State                 `json:"state"`
	Frame        *frame.Frame          `json:"-"`
	FrameSeq     uint64                `json:"frameSeq"`
	Codes        []barcode.DecodedCode `json:"codes"`
	Event        *barcode.ScanEvent    `json:"event,omitempty"`
	LookupStatus lookup.Status         `json:"lookupStatus,omitempty"`
	Recent       []lookup.Result       `json:"recent,omitempty"`
	Camera       *CameraStatus         `json:"camera,omitempty"`
	Frames       uint64                `json:"frames"`
	Events       uint64                `json:"events"`
	Dropped      uint64                `json:"dropped"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// slot is the single last-write-wins mailbox shared between the frame
// callback, the lookup worker and readers. Writes carry the session
// generation and are discarded once that generation is stale.
type slot struct {
	mu  sync.Mutex
	gen uint64

	sessionID string
	mode      Mode
	active    bool

	frame    *frame.Frame
	codes    []barcode.DecodedCode
	admitted bool

	event  *barcode.ScanEvent
	status lookup.Status
	recent []lookup.Result
	camera *CameraStatus

	frames  uint64
	events  uint64
	dropped uint64
	updated time.Time
}

func (s *slot) begin(gen uint64, sessionID string, mode Mode, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
	s.sessionID = sessionID
	s.mode = mode
	s.active = true
	s.frame = nil
	s.codes = nil
	s.admitted = false
	s.event = nil
	s.status = ""
	s.recent = nil
	s.camera = nil
	s.frames, s.events, s.dropped = 0, 0, 0
	s.updated = now
}

// end marks the session stopped. The last frame and event stay readable.
func (s *slot) end(gen uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
	s.active = false
	s.updated = now
}

func (s *slot) publishFrame(gen uint64, f *frame.Frame, codes []barcode.DecodedCode, admitted bool, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.frame = f
	s.frames++
	if admitted {
		s.codes = codes
		s.admitted = true
	}
	s.updated = now
	return true
}

func (s *slot) publishEvent(gen uint64, ev barcode.ScanEvent, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.event = &ev
	s.status = LookupPending
	s.events++
	s.updated = now
	return true
}

func (s *slot) resolve(gen uint64, res lookup.Result, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.recent = append([]lookup.Result{res}, s.recent...)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[:recentLimit]
	}
	if s.event != nil && s.event.ID == res.Event.ID {
		ev := res.Event
		s.event = &ev
		s.status = res.Status
	}
	s.updated = now
}

func (s *slot) drop(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.dropped++
	}
}

func (s *slot) cameraFailed(gen uint64, status *CameraStatus, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.camera = status
	s.updated = now
}

func (s *slot) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID:    s.sessionID,
		Mode:         s.mode,
		Active:       s.active,
		Frame:        s.frame,
		Codes:        append([]barcode.DecodedCode(nil), s.codes...),
		LookupStatus: s.status,
		Recent:       append([]lookup.Result(nil), s.recent...),
		Camera:       s.camera,
		Frames:       s.frames,
		Events:       s.events,
		Dropped:      s.dropped,
		UpdatedAt:    s.updated,
	}
	if s.frame != nil {
		snap.FrameSeq = s.frame.Seq
	}
	if s.event != nil {
		ev := *s.event
		snap.Event = &ev
	}
	snap.State = s.stateLocked()
	return snap
}

func (s *slot) stateLocked() State {
	switch {
	case s.camera != nil:
		return StateCameraUnavailable
	case !s.active && s.event == nil:
		return StateIdle
	case s.active && s.admitted && len(s.codes) == 0:
		return StateNoCode
	case s.event == nil && len(s.codes) > 0:
		return StateScanning
	case s.event == nil:
		if s.active {
			return StateNoCode
		}
		return StateIdle
	}
	switch s.status {
	case lookup.StatusFound:
		return StateFound
	case lookup.StatusNotFound:
		return StateNotFound
	case lookup.StatusUnavailable:
		return StateLookupUnavailable
	default:
		return StateLookingUp
	}
}
