// Package edge implements the Transform/Splitter execution contract: given a
// source record, run the declared edge function and translate its return
// value into zero or more EdgeResults routed to destination beakers,
// including generator fan-out and error-map routing.
package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"

	"github.com/beakerflow/beaker/engine/record"
)

// Input is what an edge function receives: the source record's identity and
// payload, plus the lineage view for that identity. The waterfall and river
// runners set Lineage for every edge, whether or not it declares WholeRecord.
type Input struct {
	ID      record.ID
	Payload json.RawMessage
	Lineage *record.Lineage
}

type outcomeKind int

const (
	outcomeSingle outcomeKind = iota
	outcomeSequence
	outcomeEmpty
)

// Result is the return value of an EdgeFunc: a single value, a lazy
// generator sequence, or nothing. Construct one with One, Seq, or Nothing.
type Result struct {
	kind  outcomeKind
	value any
	seq   iter.Seq2[any, error]
}

// One wraps a single produced value. A nil (or typed-nil) v is treated as
// "empty" by the execution contract, same as Nothing.
func One(v any) Result { return Result{kind: outcomeSingle, value: v} }

// Seq wraps a lazy generator. Each yielded (value, nil) becomes a fresh
// downstream record; a yielded (_, err) aborts the fan-out and routes err
// through the edge's error map exactly like a top-level invocation error.
func Seq(seq iter.Seq2[any, error]) Result { return Result{kind: outcomeSequence, seq: seq} }

// Nothing represents an explicit empty return.
func Nothing() Result { return Result{kind: outcomeEmpty} }

// EdgeFunc is the callable contract every Transform/Splitter leaf
// implements: read an input, produce a Result, or fail. Wrappers in
// engine/wrappers decorate values of this type.
type EdgeFunc func(ctx context.Context, in Input) (Result, error)

// ErrorRoute maps an invocation error to a destination beaker. Matches is
// consulted in declaration order; the first route whose Matches returns true
// wins.
type ErrorRoute struct {
	Matches     func(error) bool
	Destination string
}

// Transform is an edge with one source, one primary destination, and an
// optional error map.
type Transform struct {
	Fn          EdgeFunc
	Destination string
	ErrorMap    []ErrorRoute
	// AllowFilter permits an edge function to drop a record by returning
	// Nothing (or an empty generator) instead of failing with NoEdgeResult.
	AllowFilter bool
	// WholeRecord marks an edge whose function reads Input.Lineage. The
	// runners populate Lineage for every edge, so the flag does not change
	// what the function receives.
	WholeRecord bool
}

// Splitter is an edge whose classifier selects one of several inner
// Transforms per record at run time.
type Splitter struct {
	Classify func(ctx context.Context, in Input) (string, error)
	Routes   map[string]*Transform
}

// EdgeResult is one record produced by an edge invocation, destined for a
// single beaker.
type EdgeResult struct {
	Destination string
	ID          record.ID
	Payload     json.RawMessage
}

// ExecuteTransform runs t against in and returns the records it produced.
// A nil, empty slice means the record was filtered (dropped) — not an error.
func ExecuteTransform(ctx context.Context, t *Transform, in Input) ([]EdgeResult, error) {
	res, err := t.Fn(ctx, in)
	if err != nil {
		return routeError(t.Destination, t.ErrorMap, in, err)
	}

	switch res.kind {
	case outcomeSingle:
		if isEmpty(res.value) {
			return emptyOutcome(t)
		}
		payload, err := json.Marshal(res.value)
		if err != nil {
			return nil, fmt.Errorf("edge: marshal result for %q: %w", t.Destination, err)
		}
		return []EdgeResult{{Destination: t.Destination, ID: in.ID, Payload: payload}}, nil

	case outcomeSequence:
		out, seqErr := drainSeq(t.Destination, res.seq)
		if seqErr != nil {
			return routeError(t.Destination, t.ErrorMap, in, seqErr)
		}
		if len(out) == 0 {
			return emptyOutcome(t)
		}
		return out, nil

	default: // outcomeEmpty
		return emptyOutcome(t)
	}
}

// ExecuteSplitter classifies in, selects the matching inner Transform, and
// executes it under the same contract as ExecuteTransform.
func ExecuteSplitter(ctx context.Context, s *Splitter, in Input) ([]EdgeResult, error) {
	key, err := s.Classify(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("edge: splitter classify: %w", err)
	}
	t, ok := s.Routes[key]
	if !ok {
		return nil, &BadSplitResultError{Key: key}
	}
	return ExecuteTransform(ctx, t, in)
}

func emptyOutcome(t *Transform) ([]EdgeResult, error) {
	if t.AllowFilter {
		return nil, nil
	}
	return nil, &NoEdgeResultError{Destination: t.Destination}
}

func drainSeq(destination string, seq iter.Seq2[any, error]) ([]EdgeResult, error) {
	var out []EdgeResult
	var failure error
	for v, err := range seq {
		if err != nil {
			failure = err
			break
		}
		payload, merr := json.Marshal(v)
		if merr != nil {
			failure = fmt.Errorf("edge: marshal generator value for %q: %w", destination, merr)
			break
		}
		out = append(out, EdgeResult{Destination: destination, ID: record.New(), Payload: payload})
	}
	if failure != nil {
		return nil, failure
	}
	return out, nil
}

func routeError(destination string, errorMap []ErrorRoute, in Input, cause error) ([]EdgeResult, error) {
	for _, route := range errorMap {
		if route.Matches == nil || !route.Matches(cause) {
			continue
		}
		rec := ErrorRecord{
			Item:             in.Payload,
			ExceptionMessage: cause.Error(),
			ExceptionClass:   classify(cause),
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("edge: marshal error record: %w", err)
		}
		return []EdgeResult{{Destination: route.Destination, ID: in.ID, Payload: payload}}, nil
	}
	return nil, &UncaughtError{Destination: destination, Cause: cause}
}

// classify reports a best-effort class label for an error: the concrete Go
// type of its deepest wrapped cause.
func classify(err error) string {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		next := u.Unwrap()
		if next == nil {
			break
		}
		err = next
	}
	return fmt.Sprintf("%T", err)
}

// isEmpty reports whether v is nil or a typed nil pointer/map/slice/etc,
// the Go equivalent of the source language's "empty" sentinel.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
