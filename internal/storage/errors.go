package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound marks persisted state that does not exist yet. Load
// treats it as an empty set; Save must never report it as success.
var ErrNotFound = errors.New("storage: not found")

// CorruptError wraps unreadable persisted content. It is fatal: a
// corrupt store must not be silently treated as empty, or the next
// save would destroy whatever the bytes used to be.
type CorruptError struct {
	Backend string
	Err     error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("storage: %s: corrupt state: %v", e.Backend, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// UnavailableError wraps an I/O failure talking to the backend,
// distinguished from bad content (CorruptError) and absent content
// (ErrNotFound).
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("storage: %s: unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsCorrupt reports whether err is a CorruptError anywhere in its chain.
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}

// IsUnavailable reports whether err is an UnavailableError anywhere in
// its chain.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
