package store

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sagarc03/stashbox/predicate"
)

// JoinKind selects the join type.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

// Join adds one equality join to a select.
type Join struct {
	Kind  JoinKind
	Table string
	// Left and Right are the qualified columns compared by the ON clause.
	Left  string
	Right string
	// GroupBy lists the columns to group on, typically the primary key of
	// the selected table when aggregating joined rows.
	GroupBy []string
}

// Order sorts the result by one column.
type Order struct {
	Column string
	Desc   bool
}

// SelectQuery describes a select.
type SelectQuery struct {
	// Columns defaults to "*". Entries may be "col", "table.col", "table.*"
	// or "COUNT(col) AS alias".
	Columns []string
	Table   string
	Where   predicate.Expr
	Join    *Join
	Sort    []Order
	// Limit of zero means no limit. Offset requires a limit.
	Limit  int
	Offset int
}

// UpsertQuery describes a multi-row insert that refreshes existing rows.
type UpsertQuery struct {
	Table   string
	Records []Values
	// Conflict names the unique columns that identify an existing row. MySQL
	// resolves conflicts from the table's keys and ignores it.
	Conflict []string
	// Update lists the columns overwritten with incoming values on conflict.
	Update []string
}

var countPattern = regexp.MustCompile(`(?i)^count\(\s*([a-zA-Z0-9_.*]+)\s*\)\s+as\s+([a-zA-Z_][a-zA-Z0-9_]*)$`)

func quoteSelectColumn(d predicate.Dialect, col string) (string, error) {
	col = strings.TrimSpace(col)

	if col == "*" {
		return col, nil
	}

	if table, ok := strings.CutSuffix(col, ".*"); ok {
		q, err := predicate.QuoteTable(d, table)
		if err != nil {
			return "", err
		}
		return q + ".*", nil
	}

	if m := countPattern.FindStringSubmatch(col); m != nil {
		inner := "*"
		if m[1] != "*" {
			q, err := predicate.QuoteColumn(d, m[1])
			if err != nil {
				return "", err
			}
			inner = q
		}
		return "COUNT(" + inner + ") AS " + d.Quote(m[2]), nil
	}

	return predicate.QuoteColumn(d, col)
}

func buildSelect(d predicate.Dialect, q SelectQuery) (string, []any, error) {
	table, err := predicate.QuoteTable(d, q.Table)
	if err != nil {
		return "", nil, err
	}

	cols := q.Columns
	if len(cols) == 0 {
		cols = []string{"*"}
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		if quoted[i], err = quoteSelectColumn(d, c); err != nil {
			return "", nil, err
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(quoted, ", "), table)

	if q.Join != nil {
		joinSQL, err := buildJoin(d, *q.Join)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(joinSQL)
	}

	where, err := predicate.Compile(q.Where, d, 0)
	if err != nil {
		return "", nil, err
	}
	if !where.Empty() {
		b.WriteString(" ")
		b.WriteString(where.SQL)
	}

	if q.Join != nil && len(q.Join.GroupBy) > 0 {
		groups := make([]string, len(q.Join.GroupBy))
		for i, g := range q.Join.GroupBy {
			if groups[i], err = predicate.QuoteColumn(d, g); err != nil {
				return "", nil, err
			}
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groups, ", "))
	}

	if len(q.Sort) > 0 {
		orders := make([]string, len(q.Sort))
		for i, o := range q.Sort {
			col, err := predicate.QuoteColumn(d, o.Column)
			if err != nil {
				return "", nil, err
			}
			if o.Desc {
				col += " DESC"
			} else {
				col += " ASC"
			}
			orders[i] = col
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orders, ", "))
	}

	switch {
	case q.Limit < 0 || q.Offset < 0:
		return "", nil, fmt.Errorf("%w: negative limit or offset", ErrInvalidQuery)
	case q.Offset > 0 && q.Limit == 0:
		return "", nil, fmt.Errorf("%w: offset without limit", ErrInvalidQuery)
	case q.Limit > 0:
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
		if q.Offset > 0 {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.Itoa(q.Offset))
		}
	}

	return b.String(), where.Args, nil
}

func buildJoin(d predicate.Dialect, j Join) (string, error) {
	table, err := predicate.QuoteTable(d, j.Table)
	if err != nil {
		return "", err
	}
	left, err := predicate.QuoteColumn(d, j.Left)
	if err != nil {
		return "", err
	}
	right, err := predicate.QuoteColumn(d, j.Right)
	if err != nil {
		return "", err
	}

	kind := "INNER JOIN"
	if j.Kind == LeftJoin {
		kind = "LEFT JOIN"
	}

	return fmt.Sprintf(" %s %s ON %s = %s", kind, table, left, right), nil
}

// sortedColumns returns the keys of v in a stable order so generated SQL
// is deterministic.
func sortedColumns(v Values) []string {
	cols := make([]string, 0, len(v))
	for c := range v {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

func quoteColumns(d predicate.Dialect, cols []string) ([]string, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		if !predicate.IsValidIdentifier(c) {
			return nil, fmt.Errorf("%w: column %q", predicate.ErrInvalidIdentifier, c)
		}
		quoted[i] = d.Quote(c)
	}
	return quoted, nil
}

func buildInsert(d predicate.Dialect, table string, v Values) (string, []any, error) {
	if len(v) == 0 {
		return "", nil, fmt.Errorf("%w: insert without values", ErrInvalidQuery)
	}

	qt, err := predicate.QuoteTable(d, table)
	if err != nil {
		return "", nil, err
	}

	cols := sortedColumns(v)
	quoted, err := quoteColumns(d, cols)
	if err != nil {
		return "", nil, err
	}

	args := make([]any, len(cols))
	phs := make([]string, len(cols))
	for i, c := range cols {
		args[i] = v[c]
		phs[i] = d.Placeholder(i + 1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qt, strings.Join(quoted, ", "), strings.Join(phs, ", "))

	return query, args, nil
}

func scopedWhere(d predicate.Dialect, where predicate.Expr, offset int) (predicate.Fragment, error) {
	frag, err := predicate.Compile(where, d, offset)
	if err != nil {
		return predicate.Fragment{}, err
	}
	if frag.Empty() && !predicate.IsAll(where) {
		return predicate.Fragment{}, ErrUnscoped
	}
	return frag, nil
}

func appendWhere(query string, frag predicate.Fragment) string {
	if frag.Empty() {
		return query
	}
	return query + " " + frag.SQL
}

func buildUpdate(d predicate.Dialect, table string, changes Values, where predicate.Expr) (string, []any, error) {
	if len(changes) == 0 {
		return "", nil, fmt.Errorf("%w: update without changes", ErrInvalidQuery)
	}

	qt, err := predicate.QuoteTable(d, table)
	if err != nil {
		return "", nil, err
	}

	cols := sortedColumns(changes)
	quoted, err := quoteColumns(d, cols)
	if err != nil {
		return "", nil, err
	}

	args := make([]any, 0, len(cols))
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quoted[i] + " = " + d.Placeholder(i+1)
		args = append(args, changes[c])
	}

	frag, err := scopedWhere(d, where, len(cols))
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s", qt, strings.Join(sets, ", "))
	return appendWhere(query, frag), append(args, frag.Args...), nil
}

func buildDelete(d predicate.Dialect, table string, where predicate.Expr) (string, []any, error) {
	qt, err := predicate.QuoteTable(d, table)
	if err != nil {
		return "", nil, err
	}

	frag, err := scopedWhere(d, where, 0)
	if err != nil {
		return "", nil, err
	}

	return appendWhere("DELETE FROM "+qt, frag), frag.Args, nil
}

func buildIncrement(d predicate.Dialect, table, column string, where predicate.Expr) (string, []any, error) {
	qt, err := predicate.QuoteTable(d, table)
	if err != nil {
		return "", nil, err
	}

	quoted, err := quoteColumns(d, []string{column})
	if err != nil {
		return "", nil, err
	}
	col := quoted[0]

	frag, err := scopedWhere(d, where, 0)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s = %s + 1", qt, col, col)
	return appendWhere(query, frag), frag.Args, nil
}

func buildUpsert(d predicate.Dialect, q UpsertQuery) (string, []any, error) {
	if len(q.Records) == 0 {
		return "", nil, fmt.Errorf("%w: upsert without records", ErrInvalidQuery)
	}

	qt, err := predicate.QuoteTable(d, q.Table)
	if err != nil {
		return "", nil, err
	}

	cols := sortedColumns(q.Records[0])
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("%w: upsert record without values", ErrInvalidQuery)
	}

	quoted, err := quoteColumns(d, cols)
	if err != nil {
		return "", nil, err
	}

	args := make([]any, 0, len(cols)*len(q.Records))
	tuples := make([]string, len(q.Records))
	n := 1
	for i, rec := range q.Records {
		if len(rec) != len(cols) {
			return "", nil, fmt.Errorf("%w: record %d has a different column set", ErrInvalidQuery, i)
		}

		phs := make([]string, len(cols))
		for j, c := range cols {
			v, ok := rec[c]
			if !ok {
				return "", nil, fmt.Errorf("%w: record %d is missing column %q", ErrInvalidQuery, i, c)
			}
			phs[j] = d.Placeholder(n)
			args = append(args, v)
			n++
		}
		tuples[i] = "(" + strings.Join(phs, ", ") + ")"
	}

	clause, err := conflictClause(d, q.Conflict, q.Update)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s %s",
		qt, strings.Join(quoted, ", "), strings.Join(tuples, ", "), clause)

	return query, args, nil
}

func conflictClause(d predicate.Dialect, conflict, update []string) (string, error) {
	updates, err := quoteColumns(d, update)
	if err != nil {
		return "", err
	}

	if d.Name() == predicate.MySQL.Name() {
		if len(updates) == 0 {
			return "", fmt.Errorf("%w: mysql upsert needs at least one update column", ErrInvalidQuery)
		}
		sets := make([]string, len(updates))
		for i, c := range updates {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "), nil
	}

	if len(conflict) == 0 {
		return "", fmt.Errorf("%w: upsert needs conflict columns", ErrInvalidQuery)
	}
	targets, err := quoteColumns(d, conflict)
	if err != nil {
		return "", err
	}

	if len(updates) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(targets, ", ")), nil
	}

	sets := make([]string, len(updates))
	for i, c := range updates {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(targets, ", "), strings.Join(sets, ", ")), nil
}
