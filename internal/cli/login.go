package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"relaybot/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Telegram and store the user session",
	Long: "login asks for the phone number (unless PHONE is set) and the code Telegram sends, " +
		"then writes the session to SESSION_FILE. PASSWORD is used for two-step verification.",
	RunE: loginAction,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func loginAction(cmd *cobra.Command, _ []string) error {
	a, err := newToolApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	tc := a.Config().Telegram
	if tc.APIID <= 0 || tc.APIHash == "" {
		return config.ErrNoCredentials
	}
	if err := a.Login(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("login: %w", err)
	}
	return nil
}
