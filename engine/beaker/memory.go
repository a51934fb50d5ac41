package beaker

import (
	"context"
	"encoding/json"
	"iter"
	"sync"

	"github.com/beakerflow/beaker/engine/record"
)

// MemoryStore is the ephemeral, in-process Store variant. It is reset on
// process exit (nothing is ever written to disk) and uses a single mutex
// per beaker, which is sufficient because the runners already guarantee at
// most one writer touches a given beaker's destination within an edge.
type MemoryStore struct {
	name   string
	schema Schema

	mu    sync.RWMutex
	data  map[record.ID]json.RawMessage
	order []record.ID
}

// NewMemoryStore creates an empty in-memory beaker.
func NewMemoryStore(name string, schema Schema) *MemoryStore {
	return &MemoryStore{
		name:   name,
		schema: schema,
		data:   make(map[record.ID]json.RawMessage),
	}
}

func (m *MemoryStore) Name() string    { return m.name }
func (m *MemoryStore) Variant() Variant { return Ephemeral }
func (m *MemoryStore) Schema() Schema  { return m.schema }

func (m *MemoryStore) Add(_ context.Context, payload json.RawMessage, id record.ID) (record.ID, error) {
	if err := m.schema.Validate(payload); err != nil {
		return record.Empty, &ValidationError{Beaker: m.name, Cause: err}
	}
	if !id.Valid() {
		id = record.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[id]; exists {
		return record.Empty, &DuplicateError{Beaker: m.name, ID: id}
	}
	cp := append(json.RawMessage(nil), payload...)
	m.data[id] = cp
	m.order = append(m.order, id)
	return id, nil
}

// put is the internal, transaction-friendly write used by Tx: it overwrites
// an existing id rather than failing, and does not check payload against
// the beaker's schema. Edge results written by the runners reach it without
// any schema check; only seed.Manager validates before its Tx writes.
func (m *MemoryStore) put(id record.ID, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[id]; !exists {
		m.order = append(m.order, id)
	}
	cp := append(json.RawMessage(nil), payload...)
	m.data[id] = cp
}

func (m *MemoryStore) Get(_ context.Context, id record.ID) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[id]
	if !ok {
		return nil, &NotFoundError{Beaker: m.name, ID: id}
	}
	return v, nil
}

func (m *MemoryStore) Items(_ context.Context) iter.Seq2[record.ID, json.RawMessage] {
	return func(yield func(record.ID, json.RawMessage) bool) {
		m.mu.RLock()
		order := append([]record.ID(nil), m.order...)
		m.mu.RUnlock()
		for _, id := range order {
			m.mu.RLock()
			v, ok := m.data[id]
			m.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(id, v) {
				return
			}
		}
	}
}

func (m *MemoryStore) IDSet(_ context.Context) (map[record.ID]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[record.ID]struct{}, len(m.data))
	for id := range m.data {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[record.ID]json.RawMessage)
	m.order = nil
	return nil
}

// memoryWrite is one buffered Put, applied only if the owning transaction's
// callback returns nil.
type memoryWrite struct {
	store   *MemoryStore
	id      record.ID
	payload json.RawMessage
}

// memoryTx implements Tx across a fixed set of MemoryStore beakers. Writes
// are buffered and applied only on commit, giving the ephemeral variant the
// same all-or-nothing semantics the durable store gets from its database
// transaction (required for seed-run rollback on producer failure).
type memoryTx struct {
	stores  map[string]*MemoryStore
	pending []memoryWrite
}

func (t *memoryTx) Put(_ context.Context, beakerName string, id record.ID, payload json.RawMessage) error {
	s, ok := t.stores[beakerName]
	if !ok {
		return &NotFoundError{Beaker: beakerName, ID: id}
	}
	t.pending = append(t.pending, memoryWrite{store: s, id: id, payload: payload})
	return nil
}

func (t *memoryTx) commit() {
	for _, w := range t.pending {
		w.store.put(w.id, w.payload)
	}
}

// MemoryTxRunner provides WithTx over a registry of MemoryStore beakers.
type MemoryTxRunner struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryTxRunner creates a runner over the given beakers, keyed by name.
func NewMemoryTxRunner(stores map[string]*MemoryStore) *MemoryTxRunner {
	return &MemoryTxRunner{stores: stores}
}

func (r *MemoryTxRunner) WithTx(ctx context.Context, beakerNames []string, fn func(ctx context.Context, tx Tx) error) error {
	// Serialize whole transactions: the durable store's transactions are
	// already serialized by the shared database connection, so this keeps
	// the two variants' observable ordering guarantees aligned.
	r.mu.Lock()
	defer r.mu.Unlock()

	scoped := make(map[string]*MemoryStore, len(beakerNames))
	for _, name := range beakerNames {
		s, ok := r.stores[name]
		if !ok {
			return &NotFoundError{Beaker: name}
		}
		scoped[name] = s
	}
	tx := &memoryTx{stores: scoped}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}
