package schemas

import (
	"errors"
	"fmt"
)

// -- Error Taxonomy --
//
// Lock and profile failures are fatal to the session: there is no safe
// degraded mode for an unsynchronized or half-bootstrapped browser profile.
// Probe and completion failures are local to one operation and propagate up
// with context so the caller can retry or surface them.

var (
	// ErrLockTimeout reports that another session held the global lock past
	// the timeout budget. The process must exit without side effects.
	ErrLockTimeout = errors.New("another automation session holds the global lock")

	// ErrProfileBootstrap reports that the template merge-copy into an
	// instance profile could not complete.
	ErrProfileBootstrap = errors.New("profile bootstrap failed")

	// ErrProbeNotFound reports that no probe in a chain resolved to a visible
	// element: the remote UI did not present the expected affordance.
	ErrProbeNotFound = errors.New("no probe in chain resolved")

	// ErrCompletionTimeout reports that a polling loop exhausted its budget
	// without a definitive completion signal. Partial data may still accompany
	// this error.
	ErrCompletionTimeout = errors.New("wait budget exhausted before completion")
)

// PreconditionError reports an operation attempted while the search state
// machine was not in the required state.
type PreconditionError struct {
	Required SearchState
	Observed SearchState
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("operation requires search state %s, observed %s", e.Required, e.Observed)
}

// NewPreconditionError builds a PreconditionError for the given states.
func NewPreconditionError(required, observed SearchState) *PreconditionError {
	return &PreconditionError{Required: required, Observed: observed}
}

// IsPrecondition reports whether err is (or wraps) a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
