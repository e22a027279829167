package stabilizer_test

import (
	"fmt"
	"testing"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/stabilizer"
)

func codes(payloads ...string) []barcode.DecodedCode {
	out := make([]barcode.DecodedCode, len(payloads))
	for i, p := range payloads {
		out[i] = barcode.DecodedCode{Payload: p, Format: barcode.FormatQR}
	}
	return out
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("evt-%d", n)
	}
}

func TestEventFiresOnThresholdTick(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 3, Cooldown: 3 * time.Second, NewID: sequentialIDs()})
	base := time.Unix(1_000, 0)
	tick := 300 * time.Millisecond

	for i := 0; i < 2; i++ {
		if events := s.Observe(codes("X"), base.Add(time.Duration(i)*tick)); len(events) != 0 {
			t.Fatalf("tick %d: unexpected events %+v", i+1, events)
		}
	}
	events := s.Observe(codes("X"), base.Add(2*tick))
	if len(events) != 1 {
		t.Fatalf("expected one event on third tick, got %+v", events)
	}
	evt := events[0]
	if evt.Payload != "X" || evt.Format != barcode.FormatQR || evt.ID != "evt-1" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if !evt.FirstSeenAt.Equal(base) {
		t.Fatalf("expected first seen at %v, got %v", base, evt.FirstSeenAt)
	}
	if !evt.EmittedAt.Equal(base.Add(2 * tick)) {
		t.Fatalf("unexpected emitted at %v", evt.EmittedAt)
	}
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 3, Cooldown: 3 * time.Second})
	base := time.Unix(1_000, 0)
	tick := 300 * time.Millisecond

	emitted := 0
	// Held steadily for 2.7s: exactly one event inside the cooldown window.
	for i := 0; i < 10; i++ {
		emitted += len(s.Observe(codes("X"), base.Add(time.Duration(i)*tick)))
	}
	if emitted != 1 {
		t.Fatalf("expected exactly one event within cooldown, got %d", emitted)
	}
}

func TestHeldCodeReemitsAfterCooldownExpires(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 3, Cooldown: time.Second})
	base := time.Unix(1_000, 0)
	tick := 250 * time.Millisecond

	var times []time.Time
	for i := 0; i < 16; i++ {
		now := base.Add(time.Duration(i) * tick)
		for range s.Observe(codes("X"), now) {
			times = append(times, now)
		}
	}
	if len(times) < 2 {
		t.Fatalf("expected repeated events across cooldown windows, got %v", times)
	}
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) < time.Second {
			t.Fatalf("events %v and %v inside one cooldown window", times[i-1], times[i])
		}
	}
}

func TestMissedTickResetsStreak(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 3, Cooldown: 3 * time.Second})
	base := time.Unix(1_000, 0)
	tick := 300 * time.Millisecond

	sequence := [][]barcode.DecodedCode{codes("X"), codes("X"), nil, codes("X"), codes("X")}
	for i, c := range sequence {
		if events := s.Observe(c, base.Add(time.Duration(i)*tick)); len(events) != 0 {
			t.Fatalf("tick %d: unexpected event %+v", i+1, events)
		}
	}
	if events := s.Observe(codes("X"), base.Add(5*tick)); len(events) != 1 {
		t.Fatalf("expected event after three new consecutive ticks, got %+v", events)
	}
}

func TestMissedTickAfterEmissionRequiresFullNewStreak(t *testing.T) {
	tests := []struct {
		name string
		// present per tick; ticks are 300ms apart, cooldown is 1s
		present   []bool
		wantEmits []int // 1-based ticks that emit
	}{
		{
			// emit at tick 3, held through the cooldown, one miss after it expired
			name:      "miss after cooldown expired",
			present:   []bool{true, true, true, true, true, true, false, true, true, true},
			wantEmits: []int{3, 10},
		},
		{
			// one miss while still cooling down; reappearance still needs three ticks
			name:      "miss inside cooldown",
			present:   []bool{true, true, true, false, true, true, true, true, true},
			wantEmits: []int{3, 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stabilizer.New(stabilizer.Options{Threshold: 3, Cooldown: time.Second})
			base := time.Unix(1_000, 0)
			tick := 300 * time.Millisecond

			var emitted []int
			for i, present := range tt.present {
				var c []barcode.DecodedCode
				if present {
					c = codes("X")
				}
				if events := s.Observe(c, base.Add(time.Duration(i)*tick)); len(events) > 0 {
					emitted = append(emitted, i+1)
				}
			}
			if fmt.Sprint(emitted) != fmt.Sprint(tt.wantEmits) {
				t.Fatalf("emitted on ticks %v, want %v", emitted, tt.wantEmits)
			}
		})
	}
}

func TestZeroCooldownDisablesSuppression(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 2})
	base := time.Unix(1_000, 0)

	var emitted int
	for i := 0; i < 4; i++ {
		emitted += len(s.Observe(codes("X"), base.Add(time.Duration(i)*100*time.Millisecond)))
	}
	if emitted != 3 {
		t.Fatalf("expected an event on every tick from the threshold on, got %d", emitted)
	}
}

func TestDuplicateRegionsCountOnce(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 2, Cooldown: time.Second})
	base := time.Unix(1_000, 0)

	if events := s.Observe(codes("X", "X"), base); len(events) != 0 {
		t.Fatalf("two regions in one tick must not complete a streak: %+v", events)
	}
	events := s.Observe(codes("X", "X"), base.Add(100*time.Millisecond))
	if len(events) != 1 {
		t.Fatalf("expected a single event for duplicated payload, got %+v", events)
	}
}

func TestIndependentPayloads(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 2, Cooldown: time.Second})
	base := time.Unix(1_000, 0)

	s.Observe(codes("A", "B"), base)
	events := s.Observe(codes("A", "B"), base.Add(100*time.Millisecond))
	if len(events) != 2 {
		t.Fatalf("expected one event per payload, got %+v", events)
	}
	if events[0].Payload != "A" || events[1].Payload != "B" {
		t.Fatalf("expected events ordered by payload, got %+v", events)
	}
}

func TestEvictionBoundsState(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 2, Cooldown: time.Second})
	base := time.Unix(1_000, 0)

	s.Observe(codes("A"), base)
	s.Observe(codes("A"), base.Add(100*time.Millisecond))
	if s.Tracked() != 1 {
		t.Fatalf("expected one tracked payload, got %d", s.Tracked())
	}

	// Streak drops to zero but the cooldown is still running.
	s.Observe(nil, base.Add(200*time.Millisecond))
	if s.Tracked() != 1 {
		t.Fatalf("expected entry kept during cooldown, got %d", s.Tracked())
	}

	s.Observe(nil, base.Add(2*time.Second))
	if s.Tracked() != 0 {
		t.Fatalf("expected entry evicted after cooldown, got %d", s.Tracked())
	}

	// A glimpse that never reached the threshold is dropped on the next miss.
	s.Observe(codes("B"), base.Add(3*time.Second))
	s.Observe(nil, base.Add(3*time.Second+100*time.Millisecond))
	if s.Tracked() != 0 {
		t.Fatalf("expected short-lived payload evicted, got %d", s.Tracked())
	}
}

func TestWindowPolicyToleratesMisses(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{
		Threshold: 3,
		Cooldown:  3 * time.Second,
		Policy:    stabilizer.Window,
		Window:    2 * time.Second,
	})
	base := time.Unix(1_000, 0)
	tick := 300 * time.Millisecond

	sequence := [][]barcode.DecodedCode{codes("X"), nil, codes("X"), nil}
	for i, c := range sequence {
		if events := s.Observe(c, base.Add(time.Duration(i)*tick)); len(events) != 0 {
			t.Fatalf("tick %d: unexpected event %+v", i+1, events)
		}
	}
	events := s.Observe(codes("X"), base.Add(4*tick))
	if len(events) != 1 {
		t.Fatalf("expected event once three observations fall inside the window, got %+v", events)
	}
	if !events[0].FirstSeenAt.Equal(base) {
		t.Fatalf("unexpected first seen %v", events[0].FirstSeenAt)
	}
}

func TestWindowPolicyDropsStaleObservations(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 3, Policy: stabilizer.Window, Window: time.Second})
	base := time.Unix(1_000, 0)

	s.Observe(codes("X"), base)
	s.Observe(codes("X"), base.Add(1500*time.Millisecond))
	if events := s.Observe(codes("X"), base.Add(3*time.Second)); len(events) != 0 {
		t.Fatalf("observations outside the window must not count, got %+v", events)
	}
}

func TestResetClearsState(t *testing.T) {
	s := stabilizer.New(stabilizer.Options{Threshold: 2})
	base := time.Unix(1_000, 0)
	s.Observe(codes("X"), base)
	s.Reset()
	if s.Tracked() != 0 {
		t.Fatalf("expected empty state after reset")
	}
	if events := s.Observe(codes("X"), base.Add(time.Millisecond)); len(events) != 0 {
		t.Fatalf("streak should restart after reset, got %+v", events)
	}
}
