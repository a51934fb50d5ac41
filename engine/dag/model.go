// Package dag models a pipeline's beaker/edge topology: construction,
// validation (acyclic, destinations resolvable, error-map destinations well
// formed), and deterministic topological ordering.
package dag

import (
	"sort"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/edge"
)

// BeakerNode describes one declared beaker.
type BeakerNode struct {
	Name    string
	Schema  beaker.Schema
	Variant beaker.Variant
}

// EdgeKind distinguishes a Transform arc from a Splitter arc for
// validation, toposort, and runner dispatch purposes; both carry a From
// beaker.
type EdgeKind int

const (
	KindTransform EdgeKind = iota
	KindSplitter
)

// Edge is the graph's record of one declared edge. Its fields stay
// unexported; runners reach them only through the exported accessors
// below and the *Edge values OutEdges returns.
type Edge struct {
	kind      EdgeKind
	from      string
	transform *edge.Transform
	splitter  *edge.Splitter
}

// Kind reports whether this edge is a Transform or a Splitter.
func (e *Edge) Kind() EdgeKind { return e.kind }

// From returns the source beaker name.
func (e *Edge) From() string { return e.from }

// Transform returns the edge's Transform, or nil if Kind is KindSplitter.
func (e *Edge) Transform() *edge.Transform { return e.transform }

// Splitter returns the edge's Splitter, or nil if Kind is KindTransform.
func (e *Edge) Splitter() *edge.Splitter { return e.splitter }

// Destinations returns every beaker this edge can write to, including
// error destinations: for a Transform, the primary destination followed by
// its error destinations in declaration order; for a Splitter, every route
// and error destination sorted by name.
func (e *Edge) Destinations() []string { return e.destinations() }

// PrimaryDestinations returns the non-error destination(s) a runner's
// idempotent dedup set is computed against: the single Transform
// destination, or every Splitter route's destination. Error-map
// destinations are excluded, so a record that previously failed onto an
// error beaker is retried on the next run rather than skipped forever.
func (e *Edge) PrimaryDestinations() []string {
	switch e.kind {
	case KindTransform:
		return []string{e.transform.Destination}
	case KindSplitter:
		names := make([]string, 0, len(e.splitter.Routes))
		for _, t := range e.splitter.Routes {
			names = append(names, t.Destination)
		}
		sort.Strings(names)
		return names
	default:
		return nil
	}
}

// destinations returns every beaker this edge can write to, including error
// destinations (Transform: declaration order; Splitter: sorted by name).
func (e *Edge) destinations() []string {
	switch e.kind {
	case KindTransform:
		dests := []string{e.transform.Destination}
		for _, r := range e.transform.ErrorMap {
			dests = append(dests, r.Destination)
		}
		return dests
	case KindSplitter:
		names := make([]string, 0, len(e.splitter.Routes))
		for _, t := range e.splitter.Routes {
			names = append(names, t.Destination)
			for _, r := range t.ErrorMap {
				names = append(names, r.Destination)
			}
		}
		sort.Strings(names)
		return names
	default:
		return nil
	}
}

// Graph is a DAG of beakers and edges. Build one with NewGraph and the
// Add* methods; it becomes immutable once a run begins.
type Graph struct {
	beakers map[string]*BeakerNode
	order   []string // beaker declaration order, for stable diagnostics
	edges   []*Edge
	outOf   map[string][]*Edge // beaker name -> out-edges, declaration order
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		beakers: make(map[string]*BeakerNode),
		outOf:   make(map[string][]*Edge),
	}
}

// AddBeaker declares a node. Fails with GraphError if name is already used.
func (g *Graph) AddBeaker(name string, schema beaker.Schema, variant beaker.Variant) error {
	if _, exists := g.beakers[name]; exists {
		return invalid("beaker %q already declared", name)
	}
	g.beakers[name] = &BeakerNode{Name: name, Schema: schema, Variant: variant}
	g.order = append(g.order, name)
	return nil
}

// Beaker returns the declared node, or (nil, false) if absent.
func (g *Graph) Beaker(name string) (*BeakerNode, bool) {
	n, ok := g.beakers[name]
	return n, ok
}

// BeakerNames returns every declared beaker name in declaration order.
func (g *Graph) BeakerNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// AddTransform declares a Transform edge from an existing source beaker.
// Destinations (primary and error-map) must already exist; error-map
// destinations must declare edge.ErrorSchema. Fails with GraphError and
// leaves the graph unmodified if validation fails or the edge would
// introduce a cycle.
func (g *Graph) AddTransform(from string, t *edge.Transform) error {
	if t == nil {
		return invalid("nil transform from %q", from)
	}
	spec := &Edge{kind: KindTransform, from: from, transform: t}
	return g.addEdge(spec)
}

// AddSplitter declares a Splitter edge from an existing source beaker.
func (g *Graph) AddSplitter(from string, s *edge.Splitter) error {
	if s == nil {
		return invalid("nil splitter from %q", from)
	}
	spec := &Edge{kind: KindSplitter, from: from, splitter: s}
	return g.addEdge(spec)
}

func (g *Graph) addEdge(spec *Edge) error {
	if _, ok := g.beakers[spec.from]; !ok {
		return invalid("source beaker %q does not exist", spec.from)
	}
	for _, dest := range spec.destinations() {
		if _, ok := g.beakers[dest]; !ok {
			return invalid("destination beaker %q does not exist", dest)
		}
	}
	if spec.kind == KindTransform {
		if err := validateErrorMap(spec.transform.ErrorMap, g.beakers); err != nil {
			return err
		}
	} else {
		for _, t := range spec.splitter.Routes {
			if _, ok := g.beakers[t.Destination]; !ok {
				return invalid("splitter route destination %q does not exist", t.Destination)
			}
			if err := validateErrorMap(t.ErrorMap, g.beakers); err != nil {
				return err
			}
		}
	}

	g.edges = append(g.edges, spec)
	g.outOf[spec.from] = append(g.outOf[spec.from], spec)

	if cyc := g.findCycle(); cyc != "" {
		// Roll back: this edge would introduce a cycle.
		g.edges = g.edges[:len(g.edges)-1]
		g.outOf[spec.from] = g.outOf[spec.from][:len(g.outOf[spec.from])-1]
		return invalid("adding edge from %q would create a cycle through %q", spec.from, cyc)
	}
	return nil
}

func validateErrorMap(routes []edge.ErrorRoute, beakers map[string]*BeakerNode) error {
	for _, r := range routes {
		node, ok := beakers[r.Destination]
		if !ok {
			return invalid("error-map destination %q does not exist", r.Destination)
		}
		if node.Schema == nil || node.Schema.Name() != "beaker.Error" {
			return invalid("error-map destination %q must declare the Error schema", r.Destination)
		}
	}
	return nil
}

// OutEdges returns the declared out-edges of name, in declaration order.
func (g *Graph) OutEdges(name string) []*Edge {
	return g.outOf[name]
}

// findCycle returns a beaker name on a cycle, or "" if the graph is acyclic.
func (g *Graph) findCycle() string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.beakers))
	var stack []string
	var visit func(name string) string
	visit = func(name string) string {
		color[name] = gray
		stack = append(stack, name)
		for _, e := range g.outOf[name] {
			for _, dest := range e.destinations() {
				switch color[dest] {
				case gray:
					return dest
				case white:
					if found := visit(dest); found != "" {
						return found
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return ""
	}
	for _, name := range g.order {
		if color[name] == white {
			if found := visit(name); found != "" {
				return found
			}
		}
	}
	return ""
}
