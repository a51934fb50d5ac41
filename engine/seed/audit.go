package seed

import (
	"context"
	"time"
)

// Run is one successful seed execution: the audit entry that must survive
// independently of the records it created.
type Run struct {
	Name       string
	BeakerName string
	NumItems   int
	ImportedAt time.Time
}

// AuditStore persists the run-once-per-name bookkeeping for seeds. Get
// returns (nil, nil) when name has never successfully run (or was reset).
type AuditStore interface {
	Get(ctx context.Context, name string) (*Run, error)
	Put(ctx context.Context, run Run) error
	Delete(ctx context.Context, name string) error
}
