package session

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Registry.Lookup for unknown session identifiers
var ErrNotFound = errors.New("session not found")

// ErrDuplicateSession is returned by Registry.Register when the
// identifier is already registered
var ErrDuplicateSession = errors.New("session already registered")

// PersistenceError reports a failed durable write. The in-memory
// history has already advanced when it is returned; the design
// accepts that divergence rather than rolling memory back.
type PersistenceError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for session %s (%s): %v", e.SessionID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ExecutionError reports a failed agent turn. The turn lock has been
// released when it is returned, so a subsequent turn may run.
type ExecutionError struct {
	SessionID string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("turn execution failed for session %s: %v", e.SessionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
