package predicate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrInvalidIdentifier is returned when a table or column name cannot be
// safely used in a query.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Dialect describes how a SQL backend spells placeholders and identifiers.
type Dialect interface {
	// Name returns the backend name: "postgres", "sqlite" or "mysql".
	Name() string
	// Placeholder returns the placeholder for the n-th argument, starting at 1.
	Placeholder(n int) string
	// Quote quotes a single, already validated identifier.
	Quote(ident string) string
}

var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
	MySQL    Dialect = mysqlDialect{}
)

// DialectFor returns the dialect for a database type name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", name)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) Quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) Quote(ident string) string {
	return `"` + ident + `"`
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string           { return "mysql" }
func (mysqlDialect) Placeholder(int) string { return "?" }
func (mysqlDialect) Quote(ident string) string {
	return "`" + ident + "`"
}

// IsValidIdentifier reports whether name is a plain SQL identifier.
func IsValidIdentifier(name string) bool {
	return len(name) <= 63 && identPattern.MatchString(name)
}

// QuoteColumn validates and quotes a column reference. Both "column" and
// "table.column" are accepted.
func QuoteColumn(d Dialect, name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}

	quoted := make([]string, len(parts))
	for i, p := range parts {
		if !IsValidIdentifier(p) {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
		quoted[i] = d.Quote(p)
	}

	return strings.Join(quoted, "."), nil
}

// QuoteTable validates and quotes a table name.
func QuoteTable(d Dialect, name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", fmt.Errorf("%w: table %q", ErrInvalidIdentifier, name)
	}
	return d.Quote(name), nil
}
