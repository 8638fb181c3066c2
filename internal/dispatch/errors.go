package dispatch

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for dispatch or ambulance ids that do not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleState marks a status write that lost a concurrent race: the stored
// state no longer matches the state the writer observed. Callers should
// re-fetch and retry deliberately; the orchestrator never retries on its own.
var ErrStaleState = errors.New("stale dispatch state")

// ValidationError reports malformed input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports an illegal state change attempt. The stored
// record is left unchanged.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
