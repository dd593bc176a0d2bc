package domain

import (
	"errors"
	"fmt"
)

// Sentinels for the error taxonomy. Match with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError reports a missing or malformed identifying key.
// Computation aborts before any store is queried.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnavailableError reports that an underlying store could not be reached.
// Callers must surface it instead of substituting zero values.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps err as an UnavailableError for op.
func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
