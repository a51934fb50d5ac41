package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd assembles the beaker CLI surface spec.md §6 describes: show,
// graph, seeds, seed, run, clear, peek, export. Every subcommand closes
// over the same *app so they share the graph, stores, seed manager, and
// optional NATS/Neo4j integrations newApp wired up.
func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "beaker",
		Short:         "Run declarative, typed DAG pipelines over durable beakers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newShowCmd(a),
		newGraphCmd(a),
		newSeedsCmd(a),
		newSeedCmd(a),
		newRunCmd(a),
		newClearCmd(a),
		newPeekCmd(a),
		newExportCmd(a),
	)

	return cmd
}
