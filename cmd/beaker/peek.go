package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/record"
)

// newPeekCmd implements `peek (BEAKER | RECORD_ID) [--offset N] [--max-items M]`:
// a tabular preview of one beaker's records, or of a single record's
// lineage traced across every beaker that holds it.
func newPeekCmd(a *app) *cobra.Command {
	var offset int
	var maxItems int

	cmd := &cobra.Command{
		Use:   "peek (BEAKER | RECORD_ID)",
		Short: "Preview a beaker's records, or trace one record across the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := args[0]
			if store, ok := a.stores[target]; ok {
				return peekBeaker(ctx, store, offset, maxItems, cmd.OutOrStdout())
			}
			return peekRecord(ctx, a, record.ID(target), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "number of leading records to skip")
	cmd.Flags().IntVar(&maxItems, "max-items", 20, "maximum records to display (0 = unlimited)")
	return cmd
}

func peekBeaker(ctx context.Context, store beaker.Store, offset, maxItems int, w io.Writer) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Payload"})

	i, shown := 0, 0
	for id, payload := range store.Items(ctx) {
		if i < offset {
			i++
			continue
		}
		if maxItems > 0 && shown >= maxItems {
			break
		}
		t.AppendRow(table.Row{id, string(payload)})
		i++
		shown++
	}
	t.Render()
	return nil
}

func peekRecord(ctx context.Context, a *app, id record.ID, w io.Writer) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Beaker", "Payload"})

	found := false
	for _, name := range sortedBeakerNames(a.graph) {
		payload, err := a.stores[name].Get(ctx, id)
		if err != nil {
			continue
		}
		found = true
		t.AppendRow(table.Row{name, string(payload)})
	}
	if !found {
		return fmt.Errorf("peek: no beaker named %q and no record %q found in any beaker", id, id)
	}
	t.Render()
	return nil
}
