package mysql

import (
	"context"
	"database/sql"
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
	"value":       {"value", "varchar", false},
	"user_id":     {"user_id", "varchar", false},
	"revoked":     {"revoked", "tinyint", false},
	"usage_count": {"usage_count", "bigint", false},
	"created_at":  {"created_at", "datetime", false},
}

var objectsTableSchema = map[string]columnInfo{
	"id":           {"id", "varchar", false},
	"storage_path": {"storage_path", "varchar", false},
	"url":          {"url", "text", false},
	"user_id":      {"user_id", "varchar", false},
	"filename":     {"filename", "text", false},
	"mime_type":    {"mime_type", "varchar", false},
	"size_bytes":   {"size_bytes", "bigint", false},
	"etag":         {"etag", "varchar", false},
	"created_at":   {"created_at", "datetime", false},
}

var viewsTableSchema = map[string]columnInfo{
	"id":           {"id", "bigint", false},
	"object_id":    {"object_id", "varchar", false},
	"request_data": {"request_data", "mediumtext", false},
	"created_at":   {"created_at", "datetime", false},
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

	rows, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
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

	if len(actualColumns) == 0 {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	var problems []string
	for colName, expected := range expectedSchema {
		actual, ok := actualColumns[colName]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s: missing", colName))
		case actual.dataType != expected.dataType:
			problems = append(problems, fmt.Sprintf("%s: expected %s, got %s", colName, expected.dataType, actual.dataType))
		case actual.isNullable != expected.isNullable:
			problems = append(problems, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", colName, expected.isNullable, actual.isNullable))
		}
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("table %s schema validation failed: %s", tableName, strings.Join(problems, "; "))
	}

	return nil
}
