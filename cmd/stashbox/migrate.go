package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox/config"
	"github.com/sagarc03/stashbox/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create database tables",
	Long: `Create the tokens, objects and views tables if they do not exist, then
check that existing tables have the expected columns. Tokens listed under
"tokens" in the config are imported afterwards.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err = db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if err = db.Validate(ctx); err != nil {
		return fmt.Errorf("validate database schema: %w", err)
	}

	if err = seedTokens(ctx, db, cfg.Tokens); err != nil {
		return err
	}

	slog.Info("database migration complete",
		"type", cfg.Database.Type,
		"tokens", cfg.Database.Tables.Tokens,
		"objects", cfg.Database.Tables.Objects,
		"views", cfg.Database.Tables.Views,
	)
	return nil
}
