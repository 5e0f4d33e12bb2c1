// Package mysql holds the MySQL schema for stashbox: table migrations and
// schema validation over a database/sql handle opened with
// github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sagarc03/stashbox"
)

// DriverName is the database/sql driver registered by go-sql-driver/mysql.
const DriverName = "mysql"

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

func getTableMigrations(tables stashbox.Tables) []TableMigration {
	return []TableMigration{
		{TableName: tables.Tokens, Up: createTable(tokensDDL, tables.Tokens), Down: dropTable(tables.Tokens)},
		{TableName: tables.Objects, Up: createTable(objectsDDL, tables.Objects), Down: dropTable(tables.Objects)},
		{TableName: tables.Views, Up: createTable(viewsDDL, tables.Views), Down: dropTable(tables.Views)},
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

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.

const tokensDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		value VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		usage_count BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_user_id (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const objectsDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		storage_path VARCHAR(255) NOT NULL,
		url TEXT NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		filename TEXT NOT NULL,
		mime_type VARCHAR(255) NOT NULL,
		size_bytes BIGINT NOT NULL,
		etag VARCHAR(128) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_user_created (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const viewsDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		object_id VARCHAR(255) NOT NULL,
		request_data MEDIUMTEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_object_id (object_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

func createTable(ddl, tableName string) func(ctx context.Context, db *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(ddl, quoteIdentifier(tableName))); err != nil {
			return fmt.Errorf("create table %s: %w", tableName, err)
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
