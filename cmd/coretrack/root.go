package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/999joaquin/CoreTrack/internal/config"
	"github.com/999joaquin/CoreTrack/internal/logging"
)

var (
	flagConfig string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "coretrack",
	Short: "CoreTrack project tracking server",
	Long: `CoreTrack tracks projects, tasks, goals and expenses for a team,
with an activity feed and per-user notifications.

Get started:
  coretrack migrate                       Create or upgrade the database
  coretrack create-admin --email a@b.com  Add the first administrator
  coretrack serve                         Run the HTTP server`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a config file (default: ./coretrack.yaml if present)")
}
