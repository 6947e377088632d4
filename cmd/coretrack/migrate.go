package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/999joaquin/CoreTrack/internal/database"
	"github.com/999joaquin/CoreTrack/internal/push"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := database.Migrate(cfg.DBPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", cfg.DBPath, version)
		return nil
	},
}

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for web push",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "CORETRACK_VAPID_PUBLIC_KEY=%s\n", pub)
		fmt.Fprintf(out, "CORETRACK_VAPID_PRIVATE_KEY=%s\n", priv)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, vapidKeysCmd)
}
