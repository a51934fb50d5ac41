// Package record defines the opaque record identity shared by every beaker.
package record

import "github.com/google/uuid"

// ID is an opaque, fixed-width record identity. It is never mutated and is
// preserved across edges that declare the same-id contract.
type ID string

// Empty is the zero value of ID.
const Empty ID = ""

// New generates a fresh, random record identity.
func New() ID {
	return ID(uuid.NewString())
}

// Valid reports whether id is non-empty.
func (id ID) Valid() bool {
	return id != Empty
}

func (id ID) String() string {
	return string(id)
}

// Lineage carries, for a single id, the set of beaker names under which it
// has produced a value so far. It is assembled per access by the runners;
// edge functions only ever see a read-only snapshot.
type Lineage struct {
	ID      ID
	Values  map[string][]byte // beaker name -> raw JSON payload
	order   []string
}

// NewLineage creates an empty lineage rooted at id.
func NewLineage(id ID) *Lineage {
	return &Lineage{ID: id, Values: make(map[string][]byte)}
}

// With returns a new Lineage extending the receiver with one more
// (beakerName, payload) pair. The receiver is never mutated: callers treating
// it as a read-only cross-beaker projection can keep sharing the original.
func (l *Lineage) With(beakerName string, payload []byte) *Lineage {
	next := &Lineage{ID: l.ID, Values: make(map[string][]byte, len(l.Values)+1)}
	for _, name := range l.order {
		next.Values[name] = l.Values[name]
		next.order = append(next.order, name)
	}
	if _, exists := l.Values[beakerName]; !exists {
		next.order = append(next.order, beakerName)
	}
	next.Values[beakerName] = payload
	return next
}

// Get returns the raw payload stored for beaker, if any.
func (l *Lineage) Get(beakerName string) ([]byte, bool) {
	v, ok := l.Values[beakerName]
	return v, ok
}

// Beakers returns the beaker names present in the lineage, in the order they
// were added.
func (l *Lineage) Beakers() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}
