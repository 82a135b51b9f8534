package booking

import (
	"errors"
	"fmt"
)

// ErrForbidden means the actor's role does not permit the operation.
var ErrForbidden = errors.New("operation not permitted")

// ErrInvalidTransition is the sentinel wrapped by every InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid job transition")

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// InvalidTransitionError reports a state-machine guard violation. The job is
// left untouched; Status is the state the job was actually in.
type InvalidTransitionError struct {
	Op     string
	Status string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a job in status %q", e.Op, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports a rejected payload before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
