// Package graphmirror keeps a structural copy of a pipeline's beaker/edge
// topology in Neo4j, so the DAG can be explored with Cypher and graph
// tooling alongside the embedded store that actually runs it. Mirroring is
// optional and wrapped in a circuit breaker: a dead or unreachable Neo4j
// must never block a run or a seed import.
package graphmirror

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/beakerflow/beaker/engine/dag"
	"github.com/beakerflow/beaker/engine/report"
	"github.com/beakerflow/beaker/pkg/fn"
	"github.com/beakerflow/beaker/pkg/repo"
	"github.com/beakerflow/beaker/pkg/resilience"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
}

// session is the minimal interface needed from a neo4j session.
type session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// sessionAdapter adapts neo4j.SessionWithContext to session.
type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// Mirror writes a dag.Graph's beakers and edges into Neo4j as (:Beaker)
// nodes joined by [:FEEDS] relationships.
type Mirror struct {
	driver     neo4j.DriverWithContext
	breaker    *resilience.Breaker
	newSession func(ctx context.Context) session // for testing

	beakerRepo *repo.Neo4jRepo[MirroredBeaker, string]
}

// NewMirror wraps driver with breaker protection. A nil driver makes every
// method a no-op, matching how callers treat an unconfigured Neo4j URL the
// same way they treat an unconfigured NATS URL.
func NewMirror(driver neo4j.DriverWithContext, breaker *resilience.Breaker) *Mirror {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	return &Mirror{driver: driver, breaker: breaker}
}

// connected reports whether this Mirror has a way to open a session: either
// a real driver, or (in tests) an injected session factory.
func (m *Mirror) connected() bool {
	return m.driver != nil || m.newSession != nil
}

func (m *Mirror) session(ctx context.Context) session {
	if m.newSession != nil {
		return m.newSession(ctx)
	}
	return &sessionAdapter{sess: m.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// SyncGraph merges every declared beaker and edge of g into Neo4j. Existing
// nodes and relationships are updated in place (MERGE), never duplicated.
// A breaker trip or any Cypher error is returned to the caller, who decides
// whether mirror failures should abort a run or only be logged.
func (m *Mirror) SyncGraph(ctx context.Context, g *dag.Graph) error {
	if !m.connected() {
		return nil
	}
	return m.breaker.Call(ctx, func(ctx context.Context) error {
		sess := m.session(ctx)
		defer sess.Close(ctx)

		for _, name := range g.BeakerNames() {
			node, _ := g.Beaker(name)
			params := map[string]any{"name": name, "variant": node.Variant.String(), "schema": node.Schema.Name()}
			if _, err := sess.Run(ctx, mergeBeakerCypher, params); err != nil {
				return fmt.Errorf("graphmirror: merge beaker %q: %w", name, err)
			}
		}

		for _, name := range g.BeakerNames() {
			for _, e := range g.OutEdges(name) {
				kind := "transform"
				if e.Kind() == dag.KindSplitter {
					kind = "splitter"
				}
				for _, dest := range e.Destinations() {
					params := map[string]any{"from": name, "to": dest, "kind": kind}
					if _, err := sess.Run(ctx, mergeEdgeCypher, params); err != nil {
						return fmt.Errorf("graphmirror: merge edge %q->%q: %w", name, dest, err)
					}
				}
			}
		}
		return nil
	})
}

// RecordRun annotates each mirrored [:FEEDS] relationship with the record
// count its last run pushed across it, so the Neo4j graph doubles as a
// lightweight flow-volume dashboard.
func (m *Mirror) RecordRun(ctx context.Context, rep *report.RunReport) error {
	if !m.connected() || rep == nil {
		return nil
	}
	return m.breaker.Call(ctx, func(ctx context.Context) error {
		sess := m.session(ctx)
		defer sess.Close(ctx)

		for from, tos := range rep.Nodes {
			for to, n := range tos {
				if to == report.AlreadyProcessed {
					continue
				}
				params := map[string]any{"from": from, "to": to, "count": n, "run_mode": string(rep.RunMode)}
				if _, err := sess.Run(ctx, recordRunCypher, params); err != nil {
					return fmt.Errorf("graphmirror: record run %q->%q: %w", from, to, err)
				}
			}
		}
		return nil
	})
}

const mergeBeakerCypher = `
MERGE (b:Beaker {name: $name})
SET b.variant = $variant, b.schema = $schema
`

const mergeEdgeCypher = `
MATCH (a:Beaker {name: $from})
MATCH (b:Beaker {name: $to})
MERGE (a)-[r:FEEDS {kind: $kind}]->(b)
`

const recordRunCypher = `
MATCH (a:Beaker {name: $from})-[r:FEEDS]->(b:Beaker {name: $to})
SET r.last_run_count = $count, r.last_run_mode = $run_mode
`

// MirroredBeaker is one (:Beaker) node as read back out of Neo4j: the
// structural facts SyncGraph wrote, without any of the records that beaker
// actually holds.
type MirroredBeaker struct {
	Name    string
	Variant string
	Schema  string
}

func mirroredBeakerToMap(mb MirroredBeaker) map[string]any {
	return map[string]any{"name": mb.Name, "variant": mb.Variant, "schema": mb.Schema}
}

func mirroredBeakerFromRecord(rec *neo4j.Record) (MirroredBeaker, error) {
	raw, ok := rec.Get("n")
	if !ok {
		return MirroredBeaker{}, fmt.Errorf("graphmirror: record has no column %q", "n")
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return MirroredBeaker{}, fmt.Errorf("graphmirror: unexpected record shape for column %q", "n")
	}
	mb := MirroredBeaker{}
	if v, ok := node.Props["name"].(string); ok {
		mb.Name = v
	}
	if v, ok := node.Props["variant"].(string); ok {
		mb.Variant = v
	}
	if v, ok := node.Props["schema"].(string); ok {
		mb.Schema = v
	}
	return mb, nil
}

// listBeakersStage is the fn.Stage BreakerStage wraps: it has no input worth
// naming, so it's keyed on struct{}.
type listBeakersStage = fn.Stage[struct{}, []MirroredBeaker]

// ListBeakers reads the mirrored (:Beaker) nodes back out of Neo4j using the
// teacher's generic repo.Neo4jRepo, exercised here as a read path separate
// from SyncGraph/RecordRun's purpose-built Cypher. Returns (nil, nil) when
// no driver is configured. Protected by BreakerStage rather than Call/
// CallResult's closure-over-named-output style: the read returns its value
// straight through the breaker instead of an outer variable a closure writes to.
func (m *Mirror) ListBeakers(ctx context.Context) ([]MirroredBeaker, error) {
	if m.driver == nil {
		return nil, nil
	}
	if m.beakerRepo == nil {
		m.beakerRepo = repo.NewNeo4jRepo[MirroredBeaker, string](
			m.driver, "Beaker", mirroredBeakerToMap, mirroredBeakerFromRecord,
			repo.WithIDKey[MirroredBeaker, string]("name"),
		)
	}

	stage := resilience.BreakerStage(m.breaker, listBeakersStage(func(ctx context.Context, _ struct{}) fn.Result[[]MirroredBeaker] {
		items, err := m.beakerRepo.List(ctx, repo.ListOpts{Limit: 1000})
		if err != nil {
			return fn.Err[[]MirroredBeaker](fmt.Errorf("graphmirror: list beakers: %w", err))
		}
		return fn.Ok(items)
	}))
	return stage(ctx, struct{}{}).Unwrap()
}
