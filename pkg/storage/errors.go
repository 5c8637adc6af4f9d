package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an unknown room or an unknown slot on operations
// that do not auto-create.
var ErrNotFound = errors.New("not found")

// ConflictError is returned by PatchSave when the caller's expected
// sequence number does not match the stored one. The rejection is hard:
// nothing was merged. Callers decide between reload-and-retry and drop.
type ConflictError struct {
	ClientSeq uint64
	ServerSeq uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict: client seq %d, server seq %d", e.ClientSeq, e.ServerSeq)
}

// IsConflict reports whether err is a sequence conflict and returns the
// typed error when it is.
func IsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
