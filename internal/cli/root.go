// Package cli provides the command-line interface for relaybot.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"relaybot/internal/app"
	"relaybot/internal/config"
	logx "relaybot/pkg/logx"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "relaybot",
	Short: "Relay long audio posts between Telegram channels",
	Long: "relaybot reads new posts from source channels, keeps audio files longer than an hour " +
		"and forwards them to every destination channel, remembering where it left off.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadDotenv,
	RunE:              runAction,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "relaybot %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("RELAY_CONFIG"),
		"optional JSON/YAML config file (env RELAY_CONFIG)")
	rootCmd.AddCommand(versionCmd)
}

// ExecuteContext runs the root command with ctx, cancelled on SIGINT/SIGTERM.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadDotenv reads ./.env without overriding the real environment.
func loadDotenv(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv("RELAY_CONFIG"))
	}
	return nil
}

// newApp builds the App from a fully validated configuration.
func newApp() (*app.App, *config.Manager, error) {
	m := config.NewManager(configPath, os.LookupEnv)
	cfg, err := m.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	m.SetLogger(a.Logger().With(logx.String("comp", "config")))
	return a, m, nil
}

// newToolApp builds the App for maintenance commands that do not need the
// relay lists (login, state).
func newToolApp() (*app.App, error) {
	cfg, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}
