package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrDimensionMismatch   = errors.New("vector dimension mismatch")
	ErrUpstreamUnavailable = errors.New("upstream embedding unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// Error attaches the failing operation and, when known, the document id
// to one of the sentinel errors above.
type Error struct {
	Op      string
	ID      string
	Err     error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s [id=%s]: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op, id string, err error) *Error {
	return &Error{Op: op, ID: id, Err: err}
}

func WithContext(err *Error, key string, val any) *Error {
	if err.Context == nil {
		err.Context = make(map[string]any)
	}
	err.Context[key] = val
	return err
}

// Validationf returns an error wrapping ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DimensionError reports a vector whose length differs from the expected one.
func DimensionError(want, got int) error {
	return fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, want, got)
}
