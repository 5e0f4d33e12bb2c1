package postgres

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
	"revoked":     {"revoked", "boolean", false},
	"usage_count": {"usage_count", "bigint", false},
	"created_at":  {"created_at", "timestamp with time zone", false},
}

var objectsTableSchema = map[string]columnInfo{
	"id":           {"id", "text", false},
	"storage_path": {"storage_path", "text", false},
	"url":          {"url", "text", false},
	"user_id":      {"user_id", "text", false},
	"filename":     {"filename", "text", false},
	"mime_type":    {"mime_type", "text", false},
	"size_bytes":   {"size_bytes", "bigint", false},
	"etag":         {"etag", "text", false},
	"created_at":   {"created_at", "timestamp with time zone", false},
}

var viewsTableSchema = map[string]columnInfo{
	"id":           {"id", "bigint", false},
	"object_id":    {"object_id", "text", false},
	"request_data": {"request_data", "text", false},
	"created_at":   {"created_at", "timestamp with time zone", false},
}

// ValidateSchema checks that every table exists with the expected columns.
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

	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actualColumns := make(map[string]columnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actualColumns[name] = columnInfo{
			name:       name,
			dataType:   strings.ToLower(dataType),
			isNullable: nullable == "YES",
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
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}
