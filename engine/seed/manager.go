// Package seed implements registered, idempotent producers that populate an
// initial beaker and record an auditable SeedRun on success.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/record"
)

// Producer streams the values a seed inserts. A yielded (_, err) aborts the
// run before any partial results are committed.
type Producer func(ctx context.Context) iter.Seq2[any, error]

type registration struct {
	beaker  beaker.Store
	produce Producer
}

// Manager owns every registered seed and its audit trail.
type Manager struct {
	mu    sync.Mutex
	regs  map[string]registration
	audit AuditStore
}

// NewManager creates a seed manager backed by audit.
func NewManager(audit AuditStore) *Manager {
	return &Manager{regs: make(map[string]registration), audit: audit}
}

// RegisterSeed binds name to a producer writing into dest. Re-registering an
// existing name replaces its producer (registration itself is idempotent;
// run-once semantics apply only to RunSeed).
func (m *Manager) RegisterSeed(name string, dest beaker.Store, produce Producer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[name] = registration{beaker: dest, produce: produce}
}

// BeakerName reports the destination beaker name a registered seed targets,
// for callers (the CLI, lifecycle events) that need it without going
// through ListSeeds.
func (m *Manager) BeakerName(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[name]
	if !ok {
		return "", false
	}
	return reg.beaker.Name(), true
}

// ListSeeds returns, for every registered seed, the beaker it targets and
// its past runs (at most one: a reset replaces rather than appends).
func (m *Manager) ListSeeds(ctx context.Context) (map[string]map[string][]Run, error) {
	m.mu.Lock()
	names := make([]string, 0, len(m.regs))
	beakerOf := make(map[string]string, len(m.regs))
	for name, reg := range m.regs {
		names = append(names, name)
		beakerOf[name] = reg.beaker.Name()
	}
	m.mu.Unlock()

	out := make(map[string]map[string][]Run)
	for _, name := range names {
		run, err := m.audit.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("seed: list_seeds: %w", err)
		}
		beakerName := beakerOf[name]
		if out[beakerName] == nil {
			out[beakerName] = make(map[string][]Run)
		}
		if run != nil {
			out[beakerName][name] = []Run{*run}
		} else {
			out[beakerName][name] = nil
		}
	}
	return out, nil
}

// RunSeed fetches the producer registered under name, enforces run-once
// unless reset is true, streams at most maxItems (0 = unlimited) records
// into the destination beaker inside one transaction, and writes a Run
// audit entry on success. On producer failure the transaction (and thus
// every item it would have inserted) is rolled back and no audit entry is
// written.
func (m *Manager) RunSeed(ctx context.Context, txRunner beaker.TxRunner, name string, maxItems int, reset bool) (int, error) {
	m.mu.Lock()
	reg, ok := m.regs[name]
	m.mu.Unlock()
	if !ok {
		return 0, &Error{Name: name, Reason: "unknown seed"}
	}

	existing, err := m.audit.Get(ctx, name)
	if err != nil {
		return 0, &Error{Name: name, Reason: "check prior run", Cause: err}
	}
	if existing != nil {
		if !reset {
			return 0, &Error{Name: name, Reason: fmt.Sprintf("already run at %s", existing.ImportedAt.Format(time.RFC3339))}
		}
		if err := m.audit.Delete(ctx, name); err != nil {
			return 0, &Error{Name: name, Reason: "reset prior run", Cause: err}
		}
	}

	beakerName := reg.beaker.Name()
	schema := reg.beaker.Schema()
	n := 0
	err = txRunner.WithTx(ctx, []string{beakerName}, func(ctx context.Context, tx beaker.Tx) error {
		for v, perr := range reg.produce(ctx) {
			if perr != nil {
				return perr
			}
			if maxItems > 0 && n >= maxItems {
				break
			}
			payload, merr := json.Marshal(v)
			if merr != nil {
				return fmt.Errorf("marshal seed item: %w", merr)
			}
			if verr := schema.Validate(payload); verr != nil {
				return &beaker.ValidationError{Beaker: beakerName, Cause: verr}
			}
			if perr := tx.Put(ctx, beakerName, record.New(), payload); perr != nil {
				return perr
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, &Error{Name: name, Reason: "producer failed", Cause: err}
	}

	run := Run{Name: name, BeakerName: beakerName, NumItems: n, ImportedAt: time.Now().UTC()}
	if err := m.audit.Put(ctx, run); err != nil {
		return n, &Error{Name: name, Reason: "write audit entry", Cause: err}
	}
	return n, nil
}
