package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the per-source checkpoints",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last processed message ID of every source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newToolApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.Background()) }()
		return a.ShowState(cmd.Context(), cmd.OutOrStdout())
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset [source...]",
	Short: "Forget checkpoints so sources are read again from the start",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newToolApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.Background()) }()
		n, err := a.ResetState(cmd.Context(), args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d checkpoint(s)\n", n)
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd, stateResetCmd)
	rootCmd.AddCommand(stateCmd)
}
