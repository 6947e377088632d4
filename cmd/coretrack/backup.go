package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/999joaquin/CoreTrack/internal/backup"
	"github.com/999joaquin/CoreTrack/internal/database"
	"github.com/999joaquin/CoreTrack/internal/storage"
)

var flagBackupOut string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write an encrypted database backup",
	Long: `Write an encrypted snapshot of the database. With --out the snapshot is
written to a local file; otherwise it is uploaded to the configured file
storage under backups/.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.BackupPassphrase == "" {
			return errors.New("backup_passphrase or secret_key must be set")
		}
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		files, err := storage.New(cfg.Storage.Store())
		if err != nil {
			return fmt.Errorf("configure storage: %w", err)
		}
		m, err := backup.NewManager(db, files, cfg.BackupPassphrase, logger)
		if err != nil {
			return err
		}

		if flagBackupOut != "" {
			sealed, err := m.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.WriteFile(flagBackupOut, sealed, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", flagBackupOut, len(sealed))
			return nil
		}

		key, err := m.Upload(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", key)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the database with an encrypted backup",
	Long: `Decrypt a backup file, verify its integrity and replace the configured
database with it. Stop the server first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sealed, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		if err := backup.Restore(sealed, cfg.BackupPassphrase, cfg.DBPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", cfg.DBPath, args[0])
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&flagBackupOut, "out", "o", "", "Write the backup to this file instead of uploading it")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}
