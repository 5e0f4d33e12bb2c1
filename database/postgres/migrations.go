// Package postgres holds the PostgreSQL schema for stashbox: table
// migrations and schema validation over a database/sql handle opened with
// the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sagarc03/stashbox"
)

// DriverName is the database/sql driver registered by pgx/v5/stdlib.
const DriverName = "pgx"

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

func getTableMigrations(tables stashbox.Tables) []TableMigration {
	return []TableMigration{
		{TableName: tables.Tokens, Up: createTokensTable(tables.Tokens), Down: dropTable(tables.Tokens)},
		{TableName: tables.Objects, Up: createObjectsTable(tables.Objects), Down: dropTable(tables.Objects)},
		{TableName: tables.Views, Up: createViewsTable(tables.Views), Down: dropTable(tables.Views)},
	}
}

// Migrate creates every table that does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, tables stashbox.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

// DropTables drops every table, in reverse creation order.
func DropTables(ctx context.Context, db *sql.DB, tables stashbox.Tables) error {
	migrations := getTableMigrations(tables)
	for i := len(migrations) - 1; i >= 0; i-- {
		if err := migrations[i].Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migrations[i].TableName, err)
		}
	}
	return nil
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func execAll(ctx context.Context, db *sql.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createTokensTable(tableName string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		table := quote(tableName)
		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					value TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					revoked BOOLEAN NOT NULL DEFAULT FALSE,
					usage_count BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id)`,
				quote("idx_"+tableName+"_user_id"), table),
		)
		if err != nil {
			return fmt.Errorf("create tokens table: %w", err)
		}
		return nil
	}
}

func createObjectsTable(tableName string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		table := quote(tableName)
		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					storage_path TEXT NOT NULL,
					url TEXT NOT NULL,
					user_id TEXT NOT NULL,
					filename TEXT NOT NULL,
					mime_type TEXT NOT NULL,
					size_bytes BIGINT NOT NULL,
					etag TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id, created_at)`,
				quote("idx_"+tableName+"_user_created"), table),
		)
		if err != nil {
			return fmt.Errorf("create objects table: %w", err)
		}
		return nil
	}
}

func createViewsTable(tableName string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		table := quote(tableName)
		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id BIGSERIAL PRIMARY KEY,
					object_id TEXT NOT NULL,
					request_data TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (object_id)`,
				quote("idx_"+tableName+"_object_id"), table),
		)
		if err != nil {
			return fmt.Errorf("create views table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(tableName))); err != nil {
			return fmt.Errorf("drop table %s: %w", tableName, err)
		}
		return nil
	}
}
