package camera

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Kind classifies camera failures.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindPermission   Kind = "permission"
	KindBusy         Kind = "busy"
	KindDisconnected Kind = "disconnected"
	KindFailed       Kind = "failed"
)

// Error is a camera failure with actionable guidance.
type Error struct {
	Kind   Kind
	Device string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("camera %s %s: %v", e.Device, e.Kind, e.Err)
	}
	return fmt.Sprintf("camera %s %s", e.Device, e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Guidance tells the user how to recover.
func (e *Error) Guidance() string {
	if e == nil {
		return ""
	}
	device := e.Device
	if device == "" {
		device = "the camera"
	}
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("No camera found at %s. Connect a camera or set camera.device in the config.", device)
	case KindPermission:
		return fmt.Sprintf("Permission denied opening %s. Add your user to the 'video' group and log in again.", device)
	case KindBusy:
		return fmt.Sprintf("%s is in use by another application or scan session. Close it and retry.", device)
	case KindDisconnected:
		return fmt.Sprintf("%s was disconnected. Reconnect it and start a new session.", device)
	default:
		return fmt.Sprintf("%s could not be started. Check the log for capture errors.", device)
	}
}

func newError(kind Kind, device string, err error) *Error {
	return &Error{Kind: kind, Device: device, Err: err}
}

// KindOf returns the Kind of a camera error in err's chain, or "".
func KindOf(err error) Kind {
	var camErr *Error
	if errors.As(err, &camErr) {
		return camErr.Kind
	}
	return ""
}

// CheckDevice verifies the device node exists and is readable and writable by
// this process.
func CheckDevice(device string) error {
	device = strings.TrimSpace(device)
	if device == "" {
		return newError(KindNotFound, device, errors.New("no device configured"))
	}
	if _, err := os.Stat(device); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newError(KindNotFound, device, err)
		}
		if errors.Is(err, os.ErrPermission) {
			return newError(KindPermission, device, err)
		}
		return newError(KindFailed, device, err)
	}
	if err := unix.Access(device, unix.R_OK|unix.W_OK); err != nil {
		switch {
		case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM), errors.Is(err, unix.EROFS):
			return newError(KindPermission, device, err)
		case errors.Is(err, unix.ENOENT):
			return newError(KindNotFound, device, err)
		default:
			return newError(KindFailed, device, err)
		}
	}
	return nil
}

// classifyCaptureOutput maps capture tool diagnostics to a Kind.
func classifyCaptureOutput(output string) Kind {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "device or resource busy"):
		return KindBusy
	case strings.Contains(lower, "permission denied"):
		return KindPermission
	case strings.Contains(lower, "no such file or directory"), strings.Contains(lower, "no such device"):
		return KindNotFound
	}
	return ""
}
