package barcode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput marks unreadable buffers or images below the minimum
	// resolution. Callers treat it as "zero codes found".
	ErrInvalidInput = errors.New("invalid input image")

	// ErrLookupUnavailable marks an infrastructure failure reaching the
	// inventory repository. It is distinct from an unknown code.
	ErrLookupUnavailable = errors.New("inventory lookup unavailable")
)

// DecodeError reports a symbology-specific failure. It never aborts the rest
// of a frame.
type DecodeError struct {
	Family string
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("decode %s: %v", e.Family, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CapabilityMissing reports a decoder family whose backend is absent. The
// affected formats are removed from the enabled set.
type CapabilityMissing struct {
	Family  string
	Formats []Format
	Reason  string
}

func (e *CapabilityMissing) Error() string {
	if e == nil {
		return "<nil>"
	}
	names := make([]string, len(e.Formats))
	for i, f := range e.Formats {
		names[i] = string(f)
	}
	return fmt.Sprintf("capability %s missing (%s): %s", e.Family, strings.Join(names, ","), e.Reason)
}

// InvalidInputf wraps ErrInvalidInput with detail.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
