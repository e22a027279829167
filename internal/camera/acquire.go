package camera

import (
	"context"
	"errors"
	"sync"

	"shelfscan/internal/frame"
)

// Handle is an acquired camera: an open stream plus the device lock.
type Handle struct {
	device string
	stream Stream
	lock   *DeviceLock

	once sync.Once
	err  error
}

// Acquire locks the device (when lockPath is set) and opens the source. On
// any failure nothing stays acquired.
func Acquire(ctx context.Context, src Source, lockPath string) (*Handle, error) {
	if src == nil {
		return nil, errors.New("camera source required")
	}
	var lock *DeviceLock
	if lockPath != "" {
		l, err := LockDevice(lockPath, src.Device())
		if err != nil {
			return nil, err
		}
		lock = l
	}
	stream, err := src.Open(ctx)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	return &Handle{device: src.Device(), stream: stream, lock: lock}, nil
}

// Device returns the acquired device name.
func (h *Handle) Device() string { return h.device }

// Start begins frame delivery.
func (h *Handle) Start(deliver func(*frame.Frame)) error {
	return h.stream.Start(deliver)
}

// Done is closed when delivery ends.
func (h *Handle) Done() <-chan struct{} { return h.stream.Done() }

// Err reports why delivery ended.
func (h *Handle) Err() error { return h.stream.Err() }

// Release closes the stream and then unlocks the device. Only the first call
// has an effect.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		closeErr := h.stream.Close()
		unlockErr := h.lock.Release()
		h.err = errors.Join(closeErr, unlockErr)
	})
	return h.err
}
