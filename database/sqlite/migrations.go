// Package sqlite holds the SQLite schema for stashbox: table migrations
// and schema validation over a database/sql handle opened with
// modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/stashbox"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations for the app
func getTableMigrations(tables stashbox.Tables) []TableMigration {
	return []TableMigration{
		{TableName: tables.Tokens, Up: createTable(tokensDDL, tables.Tokens, "user_id"), Down: dropTable(tables.Tokens)},
		{TableName: tables.Objects, Up: createTable(objectsDDL, tables.Objects, "user_id, created_at"), Down: dropTable(tables.Objects)},
		{TableName: tables.Views, Up: createTable(viewsDDL, tables.Views, "object_id"), Down: dropTable(tables.Views)},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables stashbox.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables stashbox.Tables) error {
	migrations := getTableMigrations(tables)
	for i := len(migrations) - 1; i >= 0; i-- {
		if err := migrations[i].Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migrations[i].TableName, err)
		}
	}
	return nil
}

const tokensDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		value TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		revoked INTEGER NOT NULL DEFAULT 0,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`

const objectsDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT NOT NULL PRIMARY KEY,
		storage_path TEXT NOT NULL,
		url TEXT NOT NULL,
		user_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		etag TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`

const viewsDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		object_id TEXT NOT NULL,
		request_data TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`

func createTable(ddl, tableName, indexColumns string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		table := quoteIdentifier(tableName)

		if _, err := db.ExecContext(ctx, fmt.Sprintf(ddl, table)); err != nil {
			return fmt.Errorf("create table %s: %w", tableName, err)
		}

		index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
			quoteIdentifier("idx_"+tableName), table, indexColumns)
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("create index on %s: %w", tableName, err)
		}

		return nil
	}
}

func dropTable(tableName string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(tableName))); err != nil {
			return fmt.Errorf("drop table %s: %w", tableName, err)
		}
		return nil
	}
}
