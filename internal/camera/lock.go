package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// DeviceLock is an exclusive advisory lock on a camera device shared by every
// shelfscan process on the host.
type DeviceLock struct {
	device string
	lock   *flock.Flock
	once   sync.Once
	err    error
}

// LockDevice takes the lock at path without blocking. A held lock yields a
// KindBusy error.
func LockDevice(path, device string) (*DeviceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, newError(KindFailed, device, fmt.Errorf("acquire device lock: %w", err))
	}
	if !ok {
		return nil, newError(KindBusy, device, fmt.Errorf("lock %s held by another session", path))
	}
	return &DeviceLock{device: device, lock: lock}, nil
}

// Release unlocks the device. Repeated calls return the first result.
func (l *DeviceLock) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		l.err = l.lock.Unlock()
	})
	return l.err
}
