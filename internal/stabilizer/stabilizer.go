package stabilizer

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"shelfscan/internal/barcode"
	"shelfscan/internal/logging"
)

// Policy selects how observations build up to an event.
type Policy string

const (
	// Consecutive requires the payload in every admitted tick; one miss resets the streak.
	Consecutive Policy = "consecutive"
	// Window counts observations inside a rolling time window; misses do not reset.
	Window Policy = "window"
)

const (
	DefaultThreshold = 3
	DefaultCooldown  = 3 * time.Second
	DefaultWindow    = 2 * time.Second
)

// Options configures a Stabilizer. Zero Threshold, Policy and Window select
// the defaults. Cooldown is taken as given: zero disables suppression, which is
// what cooldown_seconds = 0 asks for; callers wanting the default pass
// DefaultCooldown.
type Options struct {
	Threshold int
	Cooldown  time.Duration
	Policy    Policy
	Window    time.Duration
	Logger    *slog.Logger
	// NewID overrides event ID generation.
	NewID func() string
}

type entry struct {
	format        barcode.Format
	streak        int
	firstSeen     time.Time
	seen          []time.Time
	cooldownUntil time.Time
}

// Stabilizer turns per-tick detections into discrete scan events. It is not
// safe for concurrent use; the frame callback owns it.
type Stabilizer struct {
	threshold int
	cooldown  time.Duration
	policy    Policy
	window    time.Duration
	newID     func() string
	logger    *slog.Logger

	entries map[string]*entry
}

// New builds a Stabilizer from opts.
func New(opts Options) *Stabilizer {
	s := &Stabilizer{
		threshold: opts.Threshold,
		cooldown:  opts.Cooldown,
		policy:    opts.Policy,
		window:    opts.Window,
		newID:     opts.NewID,
		logger:    logging.NewComponentLogger(opts.Logger, "stabilizer"),
		entries:   make(map[string]*entry),
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	if s.cooldown < 0 {
		s.cooldown = 0
	}
	if s.policy == "" {
		s.policy = Consecutive
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Observe records the codes seen in one admitted tick and returns the events
// that became stable at now, at most one per payload. The same payload seen at
// several regions in one tick counts once.
func (s *Stabilizer) Observe(codes []barcode.DecodedCode, now time.Time) []barcode.ScanEvent {
	present := make(map[string]barcode.Format, len(codes))
	for _, code := range codes {
		if code.Payload == "" {
			continue
		}
		if _, ok := present[code.Payload]; !ok {
			present[code.Payload] = code.Format
		}
	}

	if s.policy == Consecutive {
		for payload, e := range s.entries {
			if _, ok := present[payload]; !ok {
				e.streak = 0
				e.firstSeen = time.Time{}
			}
		}
	}

	var events []barcode.ScanEvent
	for _, payload := range sortedKeys(present) {
		e, ok := s.entries[payload]
		if !ok {
			e = &entry{}
			s.entries[payload] = e
		}
		e.format = present[payload]
		if s.observe(e, now) && !now.Before(e.cooldownUntil) {
			e.cooldownUntil = now.Add(s.cooldown)
			event := barcode.ScanEvent{
				ID:          s.newID(),
				Payload:     payload,
				Format:      e.format,
				FirstSeenAt: e.firstSeen,
				EmittedAt:   now,
			}
			events = append(events, event)
			s.logger.Debug("scan event emitted",
				logging.String(logging.FieldEventID, event.ID),
				logging.Payload(payload),
				logging.CodeFormat(event.Format),
				logging.Int("streak", s.count(e)),
			)
		}
	}

	s.evict(now)
	return events
}

// observe updates e for a tick in which its payload was present and reports
// whether the stability threshold is met.
func (s *Stabilizer) observe(e *entry, now time.Time) bool {
	switch s.policy {
	case Window:
		e.seen = append(pruneBefore(e.seen, now.Add(-s.window)), now)
		e.firstSeen = e.seen[0]
		return len(e.seen) >= s.threshold
	default:
		e.streak++
		if e.streak == 1 {
			e.firstSeen = now
		}
		return e.streak >= s.threshold
	}
}

func (s *Stabilizer) count(e *entry) int {
	if s.policy == Window {
		return len(e.seen)
	}
	return e.streak
}

// evict drops payloads with no live streak whose cooldown has expired.
func (s *Stabilizer) evict(now time.Time) {
	for payload, e := range s.entries {
		if s.policy == Window {
			e.seen = pruneBefore(e.seen, now.Add(-s.window))
			if len(e.seen) > 0 {
				continue
			}
		} else if e.streak > 0 {
			continue
		}
		if now.Before(e.cooldownUntil) {
			continue
		}
		delete(s.entries, payload)
	}
}

// Reset forgets every streak and cooldown.
func (s *Stabilizer) Reset() {
	s.entries = make(map[string]*entry)
}

// Tracked returns how many payloads currently hold state.
func (s *Stabilizer) Tracked() int {
	return len(s.entries)
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(times) && times[idx].Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return times
	}
	return append(times[:0], times[idx:]...)
}

func sortedKeys(m map[string]barcode.Format) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
