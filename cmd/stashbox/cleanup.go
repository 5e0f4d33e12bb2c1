package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/config"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stored files that have no object record",
	Long: `Remove stored files that have no object record.

An upload writes the file first and its record second. When the record
cannot be written and removing the file also fails, the file is left in
storage with nothing pointing at it. This command finds such files and
deletes them.

Files younger than --older-than are skipped so uploads that are still
being recorded are left alone. The age must be at least one minute.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var cleanupOlderThan time.Duration

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", time.Hour, "only remove files last modified before this long ago")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if cleanupOlderThan < stashbox.MinOrphanAge {
		return fmt.Errorf("older-than must be at least %s", stashbox.MinOrphanAge)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	files, closeFiles, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeFiles()

	service, err := newService(db, files, cfg.Service, stashbox.Hooks{})
	if err != nil {
		return err
	}
	defer service.Close()

	slog.Info("starting cleanup", "older_than", cleanupOlderThan)

	removed, err := service.CleanupOrphans(ctx, cleanupOlderThan)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	slog.Info("cleanup complete", "files_removed", removed)
	return nil
}
