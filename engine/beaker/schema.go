package beaker

import (
	"encoding/json"
	"fmt"
)

// Schema validates a beaker's payload shape on every Add. Implementations
// are expected to be cheap and side-effect free; the store's Add calls
// Validate once per insert, before writing. Writes made through a Tx are
// not validated by the store.
type Schema interface {
	// Validate reports an error if payload does not conform.
	Validate(payload json.RawMessage) error
	// Name identifies the schema for diagnostics (e.g. graph error-map checks).
	Name() string
}

// TypedSchema validates payloads by unmarshaling them into a Go value T and
// optionally running extra checks on the decoded value. This is the common
// case: most beakers declare a struct type and accept whatever round-trips.
type TypedSchema[T any] struct {
	name  string
	check func(T) error
}

// NewTypedSchema creates a schema bound to Go type T. check may be nil.
func NewTypedSchema[T any](name string, check func(T) error) *TypedSchema[T] {
	return &TypedSchema[T]{name: name, check: check}
}

func (s *TypedSchema[T]) Name() string { return s.name }

func (s *TypedSchema[T]) Validate(payload json.RawMessage) error {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("schema %s: decode: %w", s.name, err)
	}
	if s.check != nil {
		if err := s.check(v); err != nil {
			return fmt.Errorf("schema %s: %w", s.name, err)
		}
	}
	return nil
}

// AnySchema accepts any JSON value without further validation. Used for
// ephemeral scratch beakers and for records that are genuinely untyped.
var AnySchema Schema = anySchema{}

type anySchema struct{}

func (anySchema) Name() string { return "beaker.Any" }
func (anySchema) Validate(payload json.RawMessage) error {
	if !json.Valid(payload) {
		return fmt.Errorf("payload is not valid JSON")
	}
	return nil
}
