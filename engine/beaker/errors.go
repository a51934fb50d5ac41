package beaker

import (
	"errors"
	"fmt"

	"github.com/beakerflow/beaker/engine/record"
)

// Sentinel error kinds. Wrap with fmt.Errorf("%w", ...) to add context while
// keeping errors.Is checks working.
var (
	// ErrItemNotFound is returned by Get when the id is absent.
	ErrItemNotFound = errors.New("beaker: item not found")
	// ErrDuplicateID is returned by Add when the id already exists.
	ErrDuplicateID = errors.New("beaker: duplicate id")
	// ErrValidation is returned by Add when the payload fails schema validation.
	ErrValidation = errors.New("beaker: payload validation failed")
)

// NotFoundError reports a missing record.
type NotFoundError struct {
	Beaker string
	ID     record.ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("beaker %q: item %q not found", e.Beaker, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrItemNotFound }

// DuplicateError reports an id collision on Add.
type DuplicateError struct {
	Beaker string
	ID     record.ID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("beaker %q: duplicate id %q", e.Beaker, e.ID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateID }

// ValidationError reports a schema violation on Add.
type ValidationError struct {
	Beaker string
	Cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("beaker %q: %v", e.Beaker, e.Cause)
}

func (e *ValidationError) Unwrap() error { return fmt.Errorf("%w: %v", ErrValidation, e.Cause) }
