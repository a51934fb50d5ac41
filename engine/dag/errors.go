package dag

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph is the sentinel wrapped by every graph-construction
// failure (spec.md §7's GraphError).
var ErrInvalidGraph = errors.New("dag: invalid graph")

// GraphError reports a single graph-construction violation.
type GraphError struct {
	Reason string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("dag: invalid graph: %s", e.Reason)
}

func (e *GraphError) Unwrap() error { return ErrInvalidGraph }

func invalid(format string, args ...any) error {
	return &GraphError{Reason: fmt.Sprintf(format, args...)}
}
