// Package waterfall implements the breadth-first run strategy: the DAG is
// walked in topological order, and for each node every out-edge is drained
// to completion (via a worker pool) before the next out-edge begins.
package waterfall

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/dag"
	"github.com/beakerflow/beaker/engine/edge"
	"github.com/beakerflow/beaker/engine/record"
	"github.com/beakerflow/beaker/engine/report"
	"github.com/beakerflow/beaker/pkg/fn"
)

// Runner executes a dag.Graph's beakers in topological order.
type Runner struct {
	graph  *dag.Graph
	stores map[string]beaker.Store
	tx     beaker.TxRunner
}

// NewRunner builds a waterfall runner over graph, backed by stores (one per
// declared beaker name) and tx for grouping each processed record's writes.
func NewRunner(graph *dag.Graph, stores map[string]beaker.Store, tx beaker.TxRunner) *Runner {
	return &Runner{graph: graph, stores: stores, tx: tx}
}

// Options restricts and tunes a single run.
type Options struct {
	// OnlyBeakers restricts the run to the induced subgraph over these
	// beaker names, as dag.Graph.Toposort does. Empty means the whole graph.
	OnlyBeakers []string
	// NumWorkers is the size of the worker pool launched per out-edge.
	// Defaults to 1.
	NumWorkers int
}

// Run walks the graph in topological order and, for every node, drains each
// of its out-edges before moving to the next. Once the graph has been
// ordered, it returns the aggregated report whether or not it ultimately
// fails (a Toposort error returns a nil report): on the first worker failure,
// remaining workers for that edge are cancelled and the error is returned
// alongside the partial report.
func (r *Runner) Run(ctx context.Context, opts Options) (*report.RunReport, error) {
	numWorkers := opts.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}

	order, err := r.graph.Toposort(opts.OnlyBeakers)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(order))
	for _, name := range order {
		allowed[name] = true
	}

	rec := report.NewRecorder(report.Waterfall, opts.OnlyBeakers)
	for _, node := range order {
		for _, e := range r.graph.OutEdges(node) {
			if !edgeWithinSubgraph(e, allowed) {
				continue
			}
			if err := r.runEdge(ctx, node, e, rec, numWorkers); err != nil {
				return rec.Finish(), err
			}
		}
	}
	return rec.Finish(), nil
}

func edgeWithinSubgraph(e *dag.Edge, allowed map[string]bool) bool {
	for _, dest := range e.Destinations() {
		if !allowed[dest] {
			return false
		}
	}
	return true
}

func (r *Runner) runEdge(ctx context.Context, from string, e *dag.Edge, rec *report.Recorder, numWorkers int) error {
	fromStore := r.stores[from]

	already, err := alreadyProcessed(ctx, fromStore, r.stores, e.PrimaryDestinations())
	if err != nil {
		return err
	}
	if len(already) > 0 {
		rec.RecordAlreadyProcessed(from, len(already))
	}

	type queued struct {
		id      record.ID
		payload json.RawMessage
	}
	var items []queued
	for id, payload := range fromStore.Items(ctx) {
		if _, skip := already[id]; skip {
			continue
		}
		items = append(items, queued{id: id, payload: payload})
	}
	if len(items) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The worker pool itself is fn.ParMapResult, bounded to numWorkers
	// in-flight goroutines: each item's Result carries either unit (success)
	// or the failure that should cancel its siblings. A queued item whose
	// turn comes after cancellation short-circuits without running the edge.
	results := fn.ParMapResult(items, numWorkers, func(it queued) fn.Result[struct{}] {
		if runCtx.Err() != nil {
			return fn.Err[struct{}](runCtx.Err())
		}
		if err := r.processItem(runCtx, from, e, it.id, it.payload, rec); err != nil {
			cancel()
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if collected := fn.Collect(results); collected.IsErr() {
		_, err := collected.Unwrap()
		return err
	}
	return nil
}

func (r *Runner) processItem(ctx context.Context, from string, e *dag.Edge, id record.ID, payload json.RawMessage, rec *report.Recorder) error {
	beakerNames := e.Destinations()
	return r.tx.WithTx(ctx, beakerNames, func(ctx context.Context, tx beaker.Tx) error {
		lineage, err := fullLineage(ctx, r.stores, id)
		if err != nil {
			return err
		}
		in := edge.Input{ID: id, Payload: payload, Lineage: lineage}

		var results []edge.EdgeResult
		switch e.Kind() {
		case dag.KindTransform:
			results, err = edge.ExecuteTransform(ctx, e.Transform(), in)
		case dag.KindSplitter:
			results, err = edge.ExecuteSplitter(ctx, e.Splitter(), in)
		}
		if err != nil {
			return err
		}

		for _, res := range results {
			if err := tx.Put(ctx, res.Destination, res.ID, res.Payload); err != nil {
				return err
			}
			rec.Record(from, res.Destination, 1)
		}
		return nil
	})
}

// alreadyProcessed returns the ids present in fromStore that are also
// present in any of destinations, across any of the given stores.
func alreadyProcessed(ctx context.Context, fromStore beaker.Store, stores map[string]beaker.Store, destinations []string) (map[record.ID]struct{}, error) {
	from, err := fromStore.IDSet(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[record.ID]struct{})
	for _, dest := range destinations {
		store, ok := stores[dest]
		if !ok {
			continue
		}
		ids, err := store.IDSet(ctx)
		if err != nil {
			return nil, err
		}
		for id := range from {
			if _, ok := ids[id]; ok {
				seen[id] = struct{}{}
			}
		}
	}
	return seen, nil
}

// fullLineage builds a read-only cross-beaker view of id, used for
// whole-record edges and classifier functions. Not the most efficient way
// to assemble a view, but the waterfall runner only ever has the id and
// payload of the current source beaker in hand.
func fullLineage(ctx context.Context, stores map[string]beaker.Store, id record.ID) (*record.Lineage, error) {
	lin := record.NewLineage(id)
	for name, store := range stores {
		payload, err := store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, beaker.ErrItemNotFound) {
				continue
			}
			return nil, err
		}
		lin = lin.With(name, payload)
	}
	return lin, nil
}
