package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/config"
	"github.com/sagarc03/stashbox/database"
	"github.com/sagarc03/stashbox/filesystem"
	"github.com/sagarc03/stashbox/objectstore"
	"github.com/sagarc03/stashbox/pool"
	"github.com/sagarc03/stashbox/tokenfile"
)

// storage is a FileStorage that can report its own health.
type storage interface {
	stashbox.FileStorage
	Ping(ctx context.Context) error
}

// openDatabase connects to the configured database, creates missing tables
// when auto_migrate is set, and checks the schema.
func openDatabase(ctx context.Context, cfg *config.Config, listeners ...pool.Listener) (*database.Database, error) {
	db, err := database.Connect(ctx, cfg.Database, listeners...)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	slog.Info("connected to database", "type", cfg.Database.Type, "pool_size", db.Pool().Stats().Size)
	return db, nil
}

// seedTokens imports the tokens named in cfg. Seeded tokens keep their usage
// count; their user and revoked state follow the config.
func seedTokens(ctx context.Context, db *database.Database, cfg tokenfile.Config) error {
	if cfg.Empty() {
		return nil
	}

	tokens, err := tokenfile.Load(cfg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	affected, err := db.Tokens().Import(ctx, tokens)
	if err != nil {
		return fmt.Errorf("seed tokens: %w", err)
	}

	slog.Info("tokens seeded", "tokens", len(tokens), "rows_affected", affected)
	return nil
}

// openStorage opens the configured storage backend. The returned func
// releases it.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage, func(), error) {
	switch cfg.Backend {
	case "minio":
		s, err := objectstore.New(ctx, cfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("open object storage: %w", err)
		}
		slog.Info("using object storage", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
		return s, func() {}, nil
	default:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}

		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage root: %w", err)
		}
		slog.Info("using filesystem storage", "path", cfg.Path)
		return filesystem.NewFileStorage(root), func() { _ = root.Close() }, nil
	}
}

func newService(db *database.Database, files stashbox.FileStorage, cfg config.ServiceConfig, hooks stashbox.Hooks) (*stashbox.Service, error) {
	service, err := stashbox.NewService(db.Tokens(), db.Objects(), db.Views(), files, stashbox.ServiceConfig{
		CleanupTimeout:   time.Duration(cfg.CleanupTimeout) * time.Second,
		TelemetryTimeout: time.Duration(cfg.TelemetryTimeout) * time.Second,
		Hooks:            hooks,
	})
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return service, nil
}
