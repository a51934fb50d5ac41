package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/beakerflow/beaker/engine/report"
	"github.com/beakerflow/beaker/engine/river"
	"github.com/beakerflow/beaker/engine/waterfall"
)

// newRunCmd implements `run [--only BEAKER…] [--mode waterfall|river]`: drives
// the DAG to completion under the selected strategy and prints the
// resulting RunReport.
func newRunCmd(a *app) *cobra.Command {
	var only []string
	var mode string
	var numWorkers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline, writing derived records downstream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			runMode := report.Waterfall
			if mode == "river" {
				runMode = report.River
			}

			if err := a.events.RunStarted(ctx, runMode, only); err != nil {
				a.log.Warn("publish run.started failed", "err", err)
			}

			var rep *report.RunReport
			var err error
			switch runMode {
			case report.River:
				rr := river.NewRunner(a.graph, a.stores, a.tx)
				rep, err = rr.Run(ctx, river.Options{OnlyBeakers: only})
			default:
				wr := waterfall.NewRunner(a.graph, a.stores, a.tx)
				rep, err = wr.Run(ctx, waterfall.Options{OnlyBeakers: only, NumWorkers: numWorkers})
			}

			if err != nil {
				if perr := a.events.RunFailed(ctx, rep, err); perr != nil {
					a.log.Warn("publish run.failed failed", "err", perr)
				}
				if rep != nil {
					renderReport(cmd.OutOrStdout(), rep)
				}
				return err
			}

			if perr := a.events.RunCompleted(ctx, rep); perr != nil {
				a.log.Warn("publish run.completed failed", "err", perr)
			}
			if merr := a.mirror.RecordRun(ctx, rep); merr != nil {
				a.log.Warn("graph mirror record_run failed", "err", merr)
			}
			rep.Export(a.registry)
			renderReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "restrict the run to these beakers' induced subgraph")
	cmd.Flags().StringVar(&mode, "mode", "waterfall", "run strategy: waterfall or river")
	cmd.Flags().IntVar(&numWorkers, "num-workers", 1, "worker pool size per edge (waterfall mode only)")
	return cmd
}

func renderReport(w io.Writer, rep *report.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"From", "To", "Count"})

	froms := make([]string, 0, len(rep.Nodes))
	for from := range rep.Nodes {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	for _, from := range froms {
		tos := make([]string, 0, len(rep.Nodes[from]))
		for to := range rep.Nodes[from] {
			tos = append(tos, to)
		}
		sort.Strings(tos)
		for _, to := range tos {
			t.AppendRow(table.Row{from, to, rep.Nodes[from][to]})
		}
	}
	t.Render()
	fmt.Fprintf(w, "mode=%s duration=%s\n", rep.RunMode, rep.Duration())
}
