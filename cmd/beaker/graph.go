package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/emicklei/dot"
	"github.com/spf13/cobra"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/dag"
)

// newGraphCmd implements `graph --filename PATH`: renders the pipeline's
// beaker/edge topology to a DOT, SVG, or PNG file, selected by extension.
func newGraphCmd(a *app) *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Write a DOT/SVG/PNG rendering of the pipeline DAG",
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderGraph(a.graph, filename)
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "pipeline.dot", "output path; extension selects the format")
	return cmd
}

func buildDotGraph(g *dag.Graph) *dot.Graph {
	dg := dot.NewGraph(dot.Directed)
	dg.Attr("rankdir", "LR")

	nodes := make(map[string]dot.Node, len(g.BeakerNames()))
	for _, name := range g.BeakerNames() {
		node, _ := g.Beaker(name)
		n := dg.Node(name).Box()
		if node.Variant == beaker.Ephemeral {
			n.Attr("style", "dashed")
		}
		nodes[name] = n
	}

	for _, name := range g.BeakerNames() {
		for _, e := range g.OutEdges(name) {
			label := "transform"
			if e.Kind() == dag.KindSplitter {
				label = "splitter"
			}
			for _, dest := range e.Destinations() {
				nodes[name].Edge(nodes[dest], label)
			}
		}
	}
	return dg
}

// renderGraph writes the graph to filename. A ".dot" extension (or none)
// writes the raw DOT source; any other recognized extension shells out to
// the Graphviz `dot` binary to rasterize it, matching how a CLI without a
// pure-Go renderer typically produces SVG/PNG output.
func renderGraph(g *dag.Graph, filename string) error {
	dg := buildDotGraph(g)
	src := dg.String()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || ext == "dot" {
		return os.WriteFile(filename, []byte(src), 0o644)
	}

	dotBin, err := exec.LookPath("dot")
	if err != nil {
		return fmt.Errorf("graph: render %s: graphviz 'dot' binary not found on PATH: %w", ext, err)
	}
	cmd := exec.Command(dotBin, "-T"+ext, "-o", filename)
	cmd.Stdin = strings.NewReader(src)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("graph: render %s: %w", ext, err)
	}
	return nil
}
