// Package river implements the depth-first run strategy: starting from the
// root beaker's records, each record recursively fans out through every
// reachable out-edge before the next record begins, with a join-all barrier
// at every fan-out point that propagates the first failure.
package river

import (
	"context"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/dag"
	"github.com/beakerflow/beaker/engine/edge"
	"github.com/beakerflow/beaker/engine/record"
	"github.com/beakerflow/beaker/engine/report"
	"github.com/beakerflow/beaker/pkg/fn"
)

// Runner executes a dag.Graph by following individual records to
// completion before moving to the next.
type Runner struct {
	graph  *dag.Graph
	stores map[string]beaker.Store
	tx     beaker.TxRunner
}

// NewRunner builds a river runner over graph, backed by stores (one per
// declared beaker name) and tx for grouping each processed record's writes.
func NewRunner(graph *dag.Graph, stores map[string]beaker.Store, tx beaker.TxRunner) *Runner {
	return &Runner{graph: graph, stores: stores, tx: tx}
}

// Options restricts a single run.
type Options struct {
	// OnlyBeakers restricts the run to the induced subgraph over these
	// beaker names, as dag.Graph.Toposort does. Empty means the whole graph.
	OnlyBeakers []string
	// StartBeaker overrides the root beaker records are drained from.
	// Defaults to the first beaker in topological order.
	StartBeaker string
}

// run carries the state shared by every recursive step of a single Run
// call: the cooperative cancellation pair, the restricted beaker set, and
// the report every step writes counts into.
type run struct {
	*Runner
	ctx     context.Context
	cancel  context.CancelFunc
	allowed map[string]bool
	rec     *report.Recorder
}

// Run drains every record currently present in the start beaker, following
// each one through the graph to completion before starting the next; the
// fan-out within one record runs concurrently. Once the graph has been
// ordered, it returns the aggregated report whether or not it ultimately
// fails (a Toposort error returns a nil report).
func (r *Runner) Run(ctx context.Context, opts Options) (*report.RunReport, error) {
	order, err := r.graph.Toposort(opts.OnlyBeakers)
	if err != nil {
		return nil, err
	}
	rec := report.NewRecorder(report.River, opts.OnlyBeakers)
	if len(order) == 0 {
		return rec.Finish(), nil
	}

	start := opts.StartBeaker
	if start == "" {
		start = order[0]
	}
	allowed := make(map[string]bool, len(order))
	for _, name := range order {
		allowed[name] = true
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rr := &run{Runner: r, ctx: runCtx, cancel: cancel, allowed: allowed, rec: rec}

	startStore := r.stores[start]
	ids, err := startStore.IDSet(ctx)
	if err != nil {
		return rec.Finish(), err
	}

	for id := range ids {
		payload, err := startStore.Get(rr.ctx, id)
		if err != nil {
			return rec.Finish(), err
		}
		lineage := record.NewLineage(id).With(start, payload)
		if err := rr.runOneItem(start, id, lineage); err != nil {
			return rec.Finish(), err
		}
	}
	return rec.Finish(), nil
}

// runOneItem fans id out across every out-edge of cur concurrently, joining
// on all of them before returning.
func (rr *run) runOneItem(cur string, id record.ID, lineage *record.Lineage) error {
	edges := rr.graph.OutEdges(cur)
	tasks := make([]func() error, 0, len(edges))
	for _, e := range edges {
		if !edgeWithinSubgraph(e, rr.allowed) {
			continue
		}
		tasks = append(tasks, func() error {
			return rr.runEdgeForRecord(cur, e, id, lineage)
		})
	}
	return joinAll(rr.ctx, rr.cancel, tasks)
}

// runEdgeForRecord executes one out-edge for one record: skip (and count)
// if the record is already present in any of the edge's primary
// destinations, otherwise commit the edge's results in one transaction and
// recurse into each of them.
func (rr *run) runEdgeForRecord(cur string, e *dag.Edge, id record.ID, lineage *record.Lineage) error {
	already, err := anyPresent(rr.ctx, rr.stores, e.PrimaryDestinations(), id)
	if err != nil {
		return err
	}
	if already {
		rr.rec.RecordAlreadyProcessed(cur, 1)
		return nil
	}

	var results []edge.EdgeResult
	err = rr.tx.WithTx(rr.ctx, e.Destinations(), func(ctx context.Context, tx beaker.Tx) error {
		payload, _ := lineage.Get(cur)
		in := edge.Input{ID: id, Payload: payload, Lineage: lineage}

		var err error
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
		}
		return nil
	})
	if err != nil {
		return err
	}

	tasks := make([]func() error, 0, len(results))
	for _, res := range results {
		rr.rec.Record(cur, res.Destination, 1)
		nextLineage := lineage
		if res.ID == id {
			nextLineage = lineage.With(res.Destination, res.Payload)
		} else {
			// Generator fan-out: a fresh id starts its own lineage thread.
			nextLineage = record.NewLineage(res.ID).With(res.Destination, res.Payload)
		}
		tasks = append(tasks, func() error {
			return rr.runOneItem(res.Destination, res.ID, nextLineage)
		})
	}
	return joinAll(rr.ctx, rr.cancel, tasks)
}

func edgeWithinSubgraph(e *dag.Edge, allowed map[string]bool) bool {
	for _, dest := range e.Destinations() {
		if !allowed[dest] {
			return false
		}
	}
	return true
}

// anyPresent reports whether id is already present in any of destinations.
func anyPresent(ctx context.Context, stores map[string]beaker.Store, destinations []string, id record.ID) (bool, error) {
	for _, dest := range destinations {
		store, ok := stores[dest]
		if !ok {
			continue
		}
		if _, err := store.Get(ctx, id); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// joinAll runs every task concurrently and waits for all of them, returning
// the first non-nil error (if any) and cancelling the shared context so
// sibling subtrees stop recursing further once one has failed. Built on
// fn.FanOutResult, the same "run concurrently, join, propagate first error"
// primitive every recursive fan-out point in a river run needs.
func joinAll(ctx context.Context, cancel context.CancelFunc, tasks []func() error) error {
	if len(tasks) == 0 {
		return nil
	}
	stages := make([]func() fn.Result[struct{}], len(tasks))
	for i, task := range tasks {
		task := task
		stages[i] = func() fn.Result[struct{}] {
			if ctx.Err() != nil {
				return fn.Ok(struct{}{})
			}
			if err := task(); err != nil {
				cancel()
				return fn.Err[struct{}](err)
			}
			return fn.Ok(struct{}{})
		}
	}
	if joined := fn.FanOutResult(stages...); joined.IsErr() {
		_, err := joined.Unwrap()
		return err
	}
	return nil
}
