package cli

import (
	"context"

	"github.com/spf13/cobra"

	logx "relaybot/pkg/logx"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Relay new posts once and exit",
	RunE:  runAction,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Relay on the configured schedule until interrupted",
	RunE:  daemonAction,
}

func init() {
	rootCmd.AddCommand(runCmd, daemonCmd)
}

// runAction exits 0 even when some destinations failed; those are in the
// logs and the run report.
func runAction(cmd *cobra.Command, _ []string) error {
	a, _, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	if _, err := a.RunOnce(cmd.Context()); err != nil {
		a.Logger().Error("relay run failed", logx.Err(err))
		return err
	}
	return nil
}

func daemonAction(cmd *cobra.Command, _ []string) error {
	a, m, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()
	return a.Daemon(cmd.Context(), m)
}
