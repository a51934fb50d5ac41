package graphmirror

import (
	"context"
	"errors"
	"testing"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/dag"
	"github.com/beakerflow/beaker/engine/edge"
	"github.com/beakerflow/beaker/engine/report"
	"github.com/beakerflow/beaker/pkg/resilience"
)

type fakeResult struct{}

func (fakeResult) Next(ctx context.Context) bool { return false }

type call struct {
	cypher string
	params map[string]any
}

type fakeSession struct {
	calls   []call
	failOn  string
	failErr error
}

func (s *fakeSession) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	s.calls = append(s.calls, call{cypher: cypher, params: params})
	if s.failOn != "" && cypher == s.failOn {
		return nil, s.failErr
	}
	return fakeResult{}, nil
}

func (s *fakeSession) Close(ctx context.Context) error { return nil }

func newTestGraph(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.NewGraph()
	if err := g.AddBeaker("word", beaker.AnySchema, beaker.Ephemeral); err != nil {
		t.Fatal(err)
	}
	if err := g.AddBeaker("normalized", beaker.AnySchema, beaker.Durable); err != nil {
		t.Fatal(err)
	}
	tr := &edge.Transform{
		Destination: "normalized",
		Fn:          func(_ context.Context, in edge.Input) (edge.Result, error) { return edge.One(in.Payload), nil },
	}
	if err := g.AddTransform("word", tr); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSyncGraphMergesBeakersAndEdges(t *testing.T) {
	g := newTestGraph(t)
	fs := &fakeSession{}
	m := &Mirror{breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts), newSession: func(ctx context.Context) session { return fs }}

	if err := m.SyncGraph(context.Background(), g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var beakerMerges, edgeMerges int
	for _, c := range fs.calls {
		switch c.cypher {
		case mergeBeakerCypher:
			beakerMerges++
		case mergeEdgeCypher:
			edgeMerges++
			if c.params["from"] != "word" || c.params["to"] != "normalized" {
				t.Fatalf("unexpected edge params: %+v", c.params)
			}
		}
	}
	if beakerMerges != 2 {
		t.Fatalf("want 2 beaker merges, got %d", beakerMerges)
	}
	if edgeMerges != 1 {
		t.Fatalf("want 1 edge merge, got %d", edgeMerges)
	}
}

func TestSyncGraphNilDriverIsNoop(t *testing.T) {
	m := NewMirror(nil, nil)
	if err := m.SyncGraph(context.Background(), newTestGraph(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSyncGraphPropagatesCypherError(t *testing.T) {
	g := newTestGraph(t)
	boom := errors.New("boom")
	fs := &fakeSession{failOn: mergeBeakerCypher, failErr: boom}
	m := &Mirror{breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts), newSession: func(ctx context.Context) session { return fs }}

	err := m.SyncGraph(context.Background(), g)
	if err == nil {
		t.Fatal("want error")
	}
}

func TestRecordRunSkipsAlreadyProcessedBucket(t *testing.T) {
	fs := &fakeSession{}
	m := &Mirror{breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts), newSession: func(ctx context.Context) session { return fs }}
	rep := &report.RunReport{
		RunMode: report.Waterfall,
		Nodes: map[string]map[string]int{
			"word": {"normalized": 3, report.AlreadyProcessed: 5},
		},
	}

	if err := m.RecordRun(context.Background(), rep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fs.calls) != 1 {
		t.Fatalf("want 1 record-run call, got %d", len(fs.calls))
	}
	if fs.calls[0].params["to"] != "normalized" || fs.calls[0].params["count"] != 3 {
		t.Fatalf("unexpected params: %+v", fs.calls[0].params)
	}
}

func TestRecordRunNilReportIsNoop(t *testing.T) {
	m := NewMirror(nil, nil)
	if err := m.RecordRun(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
