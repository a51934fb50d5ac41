package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSeedCmd implements `seed NAME [--num-items N] [--reset]`: runs a
// registered seed once (or again, with --reset), publishing the lifecycle
// event either way.
func newSeedCmd(a *app) *cobra.Command {
	var numItems int
	var reset bool

	cmd := &cobra.Command{
		Use:   "seed NAME",
		Short: "Run a registered seed, populating its destination beaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			n, err := a.seeds.RunSeed(ctx, a.tx, name, numItems, reset)
			if err != nil {
				if perr := a.events.SeedFailed(ctx, name, err); perr != nil {
					a.log.Warn("publish seed.failed failed", "err", perr)
				}
				return err
			}

			if beakerName, ok := a.seeds.BeakerName(name); ok {
				if perr := a.events.SeedCompleted(ctx, name, beakerName, n); perr != nil {
					a.log.Warn("publish seed.completed failed", "err", perr)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed %q imported %d item(s)\n", name, n)
			return nil
		},
	}

	cmd.Flags().IntVar(&numItems, "num-items", 0, "maximum items to import (0 = unlimited)")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the seed's prior run and re-run it")
	return cmd
}
