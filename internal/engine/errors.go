package engine

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input before any state changes.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.ID)
}

// ConcurrencyConflict is returned once a completion has been retried
// Attempts times and the task's write scope is still contended.
type ConcurrencyConflict struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e ConcurrencyConflict) Error() string {
	return fmt.Sprintf("task %q is busy after %d attempts: %v", e.TaskID, e.Attempts, e.Err)
}

func (e ConcurrencyConflict) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var cc ConcurrencyConflict
	return errors.As(err, &cc)
}
