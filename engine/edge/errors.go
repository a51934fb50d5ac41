package edge

import (
	"errors"
	"fmt"
)

// ErrNoEdgeResult is wrapped by NoEdgeResultError.
var ErrNoEdgeResult = errors.New("edge: no result and filtering not allowed")

// ErrBadSplitResult is wrapped by BadSplitResultError.
var ErrBadSplitResult = errors.New("edge: splitter key not in route map")

// ErrUncaughtEdgeError is wrapped by UncaughtError.
var ErrUncaughtEdgeError = errors.New("edge: uncaught invocation error")

// NoEdgeResultError is returned when an edge function yields nothing (a
// filtered single value, or an empty generator) and the edge's AllowFilter
// is false.
type NoEdgeResultError struct {
	Destination string
}

func (e *NoEdgeResultError) Error() string {
	return fmt.Sprintf("edge: no result for destination %q", e.Destination)
}

func (e *NoEdgeResultError) Unwrap() error { return ErrNoEdgeResult }

// BadSplitResultError is returned when a Splitter's classifier selects a key
// absent from its route map.
type BadSplitResultError struct {
	Key string
}

func (e *BadSplitResultError) Error() string {
	return fmt.Sprintf("edge: splitter key %q has no route", e.Key)
}

func (e *BadSplitResultError) Unwrap() error { return ErrBadSplitResult }

// UncaughtError wraps an edge-invocation error that matched no entry in the
// edge's error map. Runners treat this as a run-aborting failure.
type UncaughtError struct {
	Destination string
	Cause       error
}

func (e *UncaughtError) Error() string {
	return fmt.Sprintf("edge: uncaught error routing to %q: %v", e.Destination, e.Cause)
}

func (e *UncaughtError) Unwrap() error { return errors.Join(ErrUncaughtEdgeError, e.Cause) }
