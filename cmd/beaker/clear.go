package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newClearCmd implements `clear [--all | BEAKER]`: resets one beaker, or
// every beaker when --all is given.
func newClearCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [BEAKER]",
		Short: "Reset one beaker, or every beaker with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if all {
				for _, name := range a.graph.BeakerNames() {
					if err := a.stores[name].Reset(ctx); err != nil {
						return fmt.Errorf("clear: reset %q: %w", name, err)
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared all beakers")
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("clear: specify a beaker name or --all")
			}
			store, ok := a.stores[args[0]]
			if !ok {
				return fmt.Errorf("clear: beaker %q does not exist", args[0])
			}
			if err := store.Reset(ctx); err != nil {
				return fmt.Errorf("clear: reset %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "clear every beaker")
	return cmd
}
