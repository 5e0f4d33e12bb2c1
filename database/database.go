package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/database/mysql"
	"github.com/sagarc03/stashbox/database/postgres"
	"github.com/sagarc03/stashbox/database/sqlite"
	"github.com/sagarc03/stashbox/pool"
	"github.com/sagarc03/stashbox/predicate"
	"github.com/sagarc03/stashbox/store"
)

// Config holds the configuration for connecting to a database backend.
type Config struct {
	// Type specifies the database type: "sqlite", "postgres" or "mysql"
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite postgres mysql"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" yaml:"dsn" validate:"required"`
	// Tables names the tokens, objects and views tables
	Tables stashbox.Tables `mapstructure:"tables" yaml:"tables"`
	// PoolSize caps concurrently used connections
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size" validate:"min=1"`
	// AcquireTimeout is how many seconds a request waits for a free
	// connection before failing; 0 waits for the request's own deadline
	AcquireTimeout int `mapstructure:"acquire_timeout" yaml:"acquire_timeout" validate:"min=0"`
	// AutoMigrate creates missing tables on startup
	AutoMigrate bool `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// Database is an open connection pool with its schema helpers and
// repositories.
type Database struct {
	kind   string
	tables stashbox.Tables
	pool   *pool.Manager
	store  *store.Store
}

// Connect opens a pool to the configured backend and verifies it answers.
// Listeners receive the pool's lifecycle events.
func Connect(ctx context.Context, cfg Config, listeners ...pool.Listener) (*Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	var driverName string
	switch cfg.Type {
	case "sqlite":
		driverName = sqlite.DriverName
	case "postgres":
		driverName = postgres.DriverName
	case "mysql":
		driverName = mysql.DriverName
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	dialect, err := predicate.DialectFor(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	connector, err := pool.DSNConnector(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Type, err)
	}

	size := cfg.PoolSize
	if size < 1 {
		size = 10
	}

	p, err := pool.Open(connector, pool.Config{
		Size:           size,
		AcquireTimeout: time.Duration(cfg.AcquireTimeout) * time.Second,
		Listeners:      listeners,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Type, err)
	}

	if err := p.Ping(ctx); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	return &Database{
		kind:   cfg.Type,
		tables: cfg.Tables,
		pool:   p,
		store:  store.New(p, dialect),
	}, nil
}

// Migrate creates any missing tables.
func (d *Database) Migrate(ctx context.Context) error {
	switch d.kind {
	case "sqlite":
		return sqlite.Migrate(ctx, d.pool.DB(), d.tables)
	case "postgres":
		return postgres.Migrate(ctx, d.pool.DB(), d.tables)
	default:
		return mysql.Migrate(ctx, d.pool.DB(), d.tables)
	}
}

// Validate checks the tables have the expected columns.
func (d *Database) Validate(ctx context.Context) error {
	switch d.kind {
	case "sqlite":
		return sqlite.ValidateSchema(ctx, d.pool.DB(), d.tables)
	case "postgres":
		return postgres.ValidateSchema(ctx, d.pool.DB(), d.tables)
	default:
		return mysql.ValidateSchema(ctx, d.pool.DB(), d.tables)
	}
}

// DropTables removes every stashbox table.
func (d *Database) DropTables(ctx context.Context) error {
	switch d.kind {
	case "sqlite":
		return sqlite.DropTables(ctx, d.pool.DB(), d.tables)
	case "postgres":
		return postgres.DropTables(ctx, d.pool.DB(), d.tables)
	default:
		return mysql.DropTables(ctx, d.pool.DB(), d.tables)
	}
}

// Ping checks a pooled connection can reach the database.
func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Close releases all connections.
func (d *Database) Close() error {
	return d.pool.Close()
}

// Pool returns the connection pool.
func (d *Database) Pool() *pool.Manager {
	return d.pool
}

// Store returns the query runner bound to this database.
func (d *Database) Store() *store.Store {
	return d.store
}

func (d *Database) Tokens() *TokenRepo {
	return &TokenRepo{store: d.store, table: d.tables.Tokens, timeValue: d.timeValue}
}

func (d *Database) Objects() *ObjectRepo {
	return &ObjectRepo{store: d.store, table: d.tables.Objects, views: d.tables.Views, timeValue: d.timeValue}
}

func (d *Database) Views() *ViewRepo {
	return &ViewRepo{store: d.store, table: d.tables.Views, timeValue: d.timeValue}
}

// timeValue converts t to what the backend stores in timestamp columns.
// SQLite keeps timestamps as RFC 3339 text.
func (d *Database) timeValue(t time.Time) any {
	if d.kind == "sqlite" {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}
