package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/frame"
)

// ErrNotStreaming is returned by Push when no stream has been started.
var ErrNotStreaming = errors.New("no active push stream")

// PushSource is fed frame by frame by an external capture layer instead of
// a device. Only one stream can be open at a time.
type PushSource struct {
	name string

	mu     sync.Mutex
	active *pushStream
}

// NewPushSource returns a source named name.
func NewPushSource(name string) *PushSource {
	if name == "" {
		name = "default"
	}
	return &PushSource{name: name}
}

// Device identifies the source for locking and status output.
func (p *PushSource) Device() string { return "push:" + p.name }

// Open creates the stream that Push feeds.
func (p *PushSource) Open(context.Context) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return nil, newError(KindBusy, p.Device(), errors.New("push stream already open"))
	}
	st := &pushStream{src: p, done: make(chan struct{})}
	p.active = st
	return st, nil
}

// Push delivers f synchronously to the started stream. The frame is stamped
// with the next sequence number; a zero capture time is replaced by now.
func (p *PushSource) Push(f *frame.Frame) error {
	if err := f.Validate(); err != nil {
		return barcode.InvalidInputf("%v", err)
	}
	p.mu.Lock()
	st := p.active
	p.mu.Unlock()
	if st == nil {
		return ErrNotStreaming
	}
	return st.push(f)
}

func (p *PushSource) release(st *pushStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == st {
		p.active = nil
	}
}

type pushStream struct {
	src *PushSource

	// mu is held for the duration of a deliver call, so Close waits for it.
	mu      sync.Mutex
	deliver func(*frame.Frame)
	closed  bool
	seq     uint64

	once sync.Once
	done chan struct{}
}

func (s *pushStream) Start(deliver func(*frame.Frame)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	if s.deliver != nil {
		return errors.New("stream already started")
	}
	s.deliver = deliver
	return nil
}

func (s *pushStream) push(f *frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.deliver == nil {
		return ErrNotStreaming
	}
	at := f.CapturedAt
	if at.IsZero() {
		at = time.Now()
	}
	s.seq++
	s.deliver(f.WithMeta(s.seq, at))
	return nil
}

func (s *pushStream) Done() <-chan struct{} { return s.done }

func (s *pushStream) Err() error { return nil }

func (s *pushStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.deliver = nil
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
	s.src.release(s)
	return nil
}
