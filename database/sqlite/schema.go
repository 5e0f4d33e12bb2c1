package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sagarc03/stashbox"
)

type columnInfo struct {
	name       string
	dataType   string
	isNullable bool
}

var tokensTableSchema = map[string]columnInfo{
	"value":       {"value", "text", false},
	"user_id":     {"user_id", "text", false},
	"revoked":     {"revoked", "integer", false},
	"usage_count": {"usage_count", "integer", false},
	"created_at":  {"created_at", "text", false},
}

var objectsTableSchema = map[string]columnInfo{
	"id":           {"id", "text", false},
	"storage_path": {"storage_path", "text", false},
	"url":          {"url", "text", false},
	"user_id":      {"user_id", "text", false},
	"filename":     {"filename", "text", false},
	"mime_type":    {"mime_type", "text", false},
	"size_bytes":   {"size_bytes", "integer", false},
	"etag":         {"etag", "text", false},
	"created_at":   {"created_at", "text", false},
}

var viewsTableSchema = map[string]columnInfo{
	"id":           {"id", "integer", false},
	"object_id":    {"object_id", "text", false},
	"request_data": {"request_data", "text", false},
	"created_at":   {"created_at", "text", false},
}

func ValidateSchema(ctx context.Context, db *sql.DB, tables stashbox.Tables) error {
	validations := []struct {
		tableName string
		expected  map[string]columnInfo
	}{
		{tables.Tokens, tokensTableSchema},
		{tables.Objects, objectsTableSchema},
		{tables.Views, viewsTableSchema},
	}

	for _, v := range validations {
		if err := validateTableSchema(ctx, db, v.tableName, v.expected); err != nil {
			return fmt.Errorf("validate schema %s: %w", v.tableName, err)
		}
	}

	return nil
}

func validateTableSchema(ctx context.Context, db *sql.DB, tableName string, expectedSchema map[string]columnInfo) error {
	if !stashbox.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	exists, err := tableExists(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}
	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	// SQLite uses PRAGMA table_info to get column information
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(tableName)))
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var dfltValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: notNull == 0,
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	var missingColumns, mismatchedColumns []string
	for colName, expected := range expectedSchema {
		actual, ok := actualColumns[colName]
		if !ok {
			missingColumns = append(missingColumns, colName)
			continue
		}
		if actual.dataType != expected.dataType {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected %s, got %s", colName, expected.dataType, actual.dataType))
		}
		if actual.isNullable != expected.isNullable {
			mismatchedColumns = append(mismatchedColumns,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, expected.isNullable, actual.isNullable))
		}
	}

	if len(missingColumns) == 0 && len(mismatchedColumns) == 0 {
		return nil
	}

	slices.Sort(missingColumns)
	slices.Sort(mismatchedColumns)

	var errMsg strings.Builder
	fmt.Fprintf(&errMsg, "table %s schema validation failed:\n", tableName)
	if len(missingColumns) > 0 {
		fmt.Fprintf(&errMsg, "  missing columns: %s\n", strings.Join(missingColumns, ", "))
	}
	if len(mismatchedColumns) > 0 {
		fmt.Fprintf(&errMsg, "  mismatched columns:\n")
		for _, msg := range mismatchedColumns {
			fmt.Fprintf(&errMsg, "    - %s\n", msg)
		}
	}

	return errors.New(errMsg.String())
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, tableName).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return true, nil
}
