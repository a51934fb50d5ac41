// Package beaker implements the typed, durable (or ephemeral) record store
// that backs each node of a pipeline graph.
package beaker

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/beakerflow/beaker/engine/record"
)

// Variant selects a beaker's durability.
type Variant int

const (
	// Durable beakers persist to the shared embedded database file.
	Durable Variant = iota
	// Ephemeral beakers live only in process memory and reset on exit.
	Ephemeral
)

func (v Variant) String() string {
	if v == Durable {
		return "durable"
	}
	return "ephemeral"
}

// Store is the typed, ordered mapping from record id to validated payload
// that a single beaker exposes. All methods are safe for concurrent callers;
// see package doc of engine/waterfall and engine/river for the exact
// concurrency discipline the runners rely on.
type Store interface {
	// Name returns the beaker's declared name.
	Name() string
	// Variant reports whether this beaker is durable or ephemeral.
	Variant() Variant
	// Schema returns the beaker's declared schema.
	Schema() Schema

	// Add validates payload, assigns id (generating one if empty), and
	// inserts it. Returns DuplicateError if id is already present.
	Add(ctx context.Context, payload json.RawMessage, id record.ID) (record.ID, error)
	// Get returns the stored payload or NotFoundError.
	Get(ctx context.Context, id record.ID) (json.RawMessage, error)
	// Items yields (id, payload) pairs in insertion order.
	Items(ctx context.Context) iter.Seq2[record.ID, json.RawMessage]
	// IDSet returns the set of ids currently present.
	IDSet(ctx context.Context) (map[record.ID]struct{}, error)
	// Len returns the exact number of records.
	Len(ctx context.Context) (int, error)
	// Reset removes every record.
	Reset(ctx context.Context) error
}

// Tx groups several writes (and any report-counter bookkeeping) that must
// commit or roll back together. Durable stores implement this with one
// database transaction per processed source record, as spec.md §4.1
// requires; the memory store implements it with a mutex held for the
// duration of the callback.
type Tx interface {
	// Put writes payload under id in the named beaker, creating the id if
	// absent or overwriting an existing payload under the same id (used by
	// fan-out, where the destination id is freshly generated and cannot
	// collide, and by idempotent re-delivery of the same source id).
	Put(ctx context.Context, beakerName string, id record.ID, payload json.RawMessage) error
}

// TxRunner executes fn inside a single transaction scoped to the given
// beaker names. Implementations must ensure fn's writes are atomic: either
// all of them are visible after TxRunner returns nil, or none are.
type TxRunner interface {
	WithTx(ctx context.Context, beakerNames []string, fn func(ctx context.Context, tx Tx) error) error
}
