package inventory

import "errors"

var (
	// ErrNotFound indicates no item matches the payload. It is an ordinary
	// outcome, not a repository failure.
	ErrNotFound = errors.New("inventory item not found")

	// ErrDuplicateCode indicates the code is already bound to another item.
	ErrDuplicateCode = errors.New("code already registered")
)
