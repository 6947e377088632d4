package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/999joaquin/CoreTrack/internal/auth"
	"github.com/999joaquin/CoreTrack/internal/database"
	"github.com/999joaquin/CoreTrack/internal/model"
	"github.com/999joaquin/CoreTrack/internal/store"
)

var (
	flagAdminEmail    string
	flagAdminName     string
	flagAdminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account with a verified email and default
notification preferences. Useful for seeding a fresh install or recovering
access when no admin remains.`,
	Args: cobra.NoArgs,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&flagAdminEmail, "email", "", "Email address (required)")
	createAdminCmd.Flags().StringVar(&flagAdminName, "name", "", "Full name")
	createAdminCmd.Flags().StringVar(&flagAdminPassword, "password", "", "Password (required)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createAdminCmd)
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	email := strings.ToLower(strings.TrimSpace(flagAdminEmail))
	if !strings.Contains(email, "@") {
		return errors.New("a valid --email is required")
	}
	if s := auth.CheckStrength(flagAdminPassword); !s.Valid {
		return fmt.Errorf("password too weak: needs %s", strings.Join(s.Missing, ", "))
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	users := store.NewUserStore(db)
	existing, err := users.GetByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%s already has an account", email)
	}

	hash, err := auth.HashPassword(flagAdminPassword)
	if err != nil {
		return err
	}
	user, err := users.Create(email, strings.TrimSpace(flagAdminName), model.RoleAdmin, hash)
	if err != nil {
		return err
	}
	if err := users.MarkEmailVerified(user.ID); err != nil {
		return err
	}
	if err := store.NewPreferenceStore(db).CreateDefault(context.Background(), user.ID); err != nil {
		return err
	}

	logger.Info("admin created", "user_id", user.ID, "email", email)
	fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (id %d)\n", email, user.ID)
	return nil
}
