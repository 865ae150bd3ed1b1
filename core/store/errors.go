package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSession indicates no session is currently tracking.
	ErrNoActiveSession = errors.New("no active session")

	// ErrDuplicateID indicates an insert collided with an existing row id.
	ErrDuplicateID = errors.New("duplicate id")
)

// NotFoundError reports a lookup miss, carrying the offending identifier.
type NotFoundError struct {
	Entity string // "session", "change" or "commit"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// IsNotFound reports whether err is a lookup miss for any entity.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// SessionAlreadyActiveError indicates a second session was started while one
// is still tracking.
type SessionAlreadyActiveError struct {
	Root string
}

func (e *SessionAlreadyActiveError) Error() string {
	return fmt.Sprintf("session already active at: %s", e.Root)
}

// ChangeAlreadyCommittedError indicates a commit referenced a change that is
// already owned by another commit. Membership is unique per change.
type ChangeAlreadyCommittedError struct {
	ChangeID string
}

func (e *ChangeAlreadyCommittedError) Error() string {
	return fmt.Sprintf("change already committed: %s", e.ChangeID)
}
