package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// newExportCmd implements `export BEAKER [AUX…] [--format json|csv] [--max-items N]`:
// streams a beaker's records out, optionally joined by record id against
// one or more auxiliary beakers (e.g. exporting "fruit" alongside its
// "sentence" lineage).
func newExportCmd(a *app) *cobra.Command {
	var format string
	var maxItems int

	cmd := &cobra.Command{
		Use:   "export BEAKER [AUX...]",
		Short: "Stream a beaker's records (optionally joined with auxiliary beakers)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), a, args, format, maxItems, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "maximum records to export (0 = unlimited)")
	return cmd
}

func runExport(ctx context.Context, a *app, beakers []string, format string, maxItems int, w io.Writer) error {
	primary, ok := a.stores[beakers[0]]
	if !ok {
		return fmt.Errorf("export: beaker %q does not exist", beakers[0])
	}
	aux := beakers[1:]
	for _, name := range aux {
		if _, ok := a.stores[name]; !ok {
			return fmt.Errorf("export: beaker %q does not exist", name)
		}
	}

	var rows []map[string]any
	n := 0
	for id, payload := range primary.Items(ctx) {
		if maxItems > 0 && n >= maxItems {
			break
		}
		row := map[string]any{"id": id.String()}
		var fields map[string]any
		if err := json.Unmarshal(payload, &fields); err == nil {
			for k, v := range fields {
				row[k] = v
			}
		} else {
			row["payload"] = string(payload)
		}
		for _, name := range aux {
			if auxPayload, err := a.stores[name].Get(ctx, id); err == nil {
				row[name] = string(auxPayload)
			}
		}
		rows = append(rows, row)
		n++
	}

	switch format {
	case "csv":
		return exportCSV(rows, w)
	default:
		return exportJSON(rows, w)
	}
}

func exportJSON(rows []map[string]any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func exportCSV(rows []map[string]any, w io.Writer) error {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, row := range rows {
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = fmt.Sprint(row[c])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
