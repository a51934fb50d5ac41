package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newShowCmd implements `show [--empty] [--watch]`: a tabular snapshot of
// each beaker's record count and outbound edges.
func newShowCmd(a *app) *cobra.Command {
	var showEmpty bool
	var watch bool
	var mirror bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a tabular snapshot of each beaker's count and outbound edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mirror {
				return renderMirror(cmd.Context(), a, cmd.OutOrStdout())
			}
			if watch {
				return watchShow(cmd.Context(), a, showEmpty)
			}
			return renderShow(cmd.Context(), a, showEmpty, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&showEmpty, "empty", false, "include beakers with zero records")
	cmd.Flags().BoolVar(&watch, "watch", false, "poll and redraw the table once per second")
	cmd.Flags().BoolVar(&mirror, "mirror", false, "read the structural snapshot back out of the Neo4j mirror instead")
	return cmd
}

func renderMirror(ctx context.Context, a *app, w io.Writer) error {
	beakers, err := a.mirror.ListBeakers(ctx)
	if err != nil {
		return fmt.Errorf("show --mirror: %w", err)
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Beaker", "Variant", "Schema"})
	for _, b := range beakers {
		t.AppendRow(table.Row{b.Name, b.Variant, b.Schema})
	}
	t.Render()
	return nil
}

func renderShow(ctx context.Context, a *app, showEmpty bool, w io.Writer) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Beaker", "Variant", "Count", "Out Edges"})

	for _, name := range sortedBeakerNames(a.graph) {
		store, ok := a.stores[name]
		if !ok {
			continue
		}
		n, err := store.Len(ctx)
		if err != nil {
			return fmt.Errorf("show: len(%q): %w", name, err)
		}
		if n == 0 && !showEmpty {
			continue
		}
		node, _ := a.graph.Beaker(name)

		var dests []string
		for _, e := range a.graph.OutEdges(name) {
			dests = append(dests, strings.Join(e.PrimaryDestinations(), "|"))
		}
		t.AppendRow(table.Row{name, node.Variant, n, strings.Join(dests, ", ")})
	}
	t.Render()
	return nil
}

func watchShow(ctx context.Context, a *app, showEmpty bool) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		fmt.Print("\033[H\033[2J")
		if err := renderShow(ctx, a, showEmpty, os.Stdout); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
