package main

import (
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newSeedsCmd implements `seeds`: lists every registered seed alongside its
// past runs (spec.md's Seed run-once audit trail).
func newSeedsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seeds",
		Short: "List registered seeds and their past runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := a.seeds.ListSeeds(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Beaker", "Seed", "Last Run", "Items"})

			beakerNames := make([]string, 0, len(listing))
			for name := range listing {
				beakerNames = append(beakerNames, name)
			}
			sort.Strings(beakerNames)

			for _, beakerName := range beakerNames {
				seedNames := make([]string, 0, len(listing[beakerName]))
				for name := range listing[beakerName] {
					seedNames = append(seedNames, name)
				}
				sort.Strings(seedNames)

				for _, seedName := range seedNames {
					runs := listing[beakerName][seedName]
					if len(runs) == 0 {
						t.AppendRow(table.Row{beakerName, seedName, "never", 0})
						continue
					}
					for _, run := range runs {
						t.AppendRow(table.Row{beakerName, seedName, run.ImportedAt.Format(time.RFC3339), run.NumItems})
					}
				}
			}
			t.Render()
			return nil
		},
	}
}
