package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sagarc03/stashbox/pool"
	"github.com/sagarc03/stashbox/predicate"
)

// Select returns every row matching q.
func (s *Store) Select(ctx context.Context, q SelectQuery) ([]Row, error) {
	query, args, err := buildSelect(s.dialect, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}

	var rows []Row
	err = s.pool.With(ctx, func(ctx context.Context, c *pool.Conn) error {
		r, err := c.QueryContext(ctx, query, args...)
		if err != nil {
			return &QueryError{Op: "select", Query: query, Err: err}
		}
		defer func() { _ = r.Close() }()

		rows, err = scanRows(r)
		if err != nil {
			return &QueryError{Op: "select", Query: query, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// SelectOne returns the first row matching q, or ErrNoRows.
func (s *Store) SelectOne(ctx context.Context, q SelectQuery) (Row, error) {
	q.Limit = 1
	q.Offset = 0

	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

// Insert writes one row.
func (s *Store) Insert(ctx context.Context, table string, v Values) (Result, error) {
	query, args, err := buildInsert(s.dialect, table, v)
	if err != nil {
		return Result{}, fmt.Errorf("insert %s: %w", table, err)
	}
	return s.exec(ctx, "insert", query, args)
}

// Update sets changes on every row matching where. An empty filter is
// rejected unless where is predicate.All.
func (s *Store) Update(ctx context.Context, table string, changes Values, where predicate.Expr) (Result, error) {
	query, args, err := buildUpdate(s.dialect, table, changes, where)
	if err != nil {
		return Result{}, fmt.Errorf("update %s: %w", table, err)
	}
	return s.exec(ctx, "update", query, args)
}

// Delete removes every row matching where. An empty filter is rejected
// unless where is predicate.All.
func (s *Store) Delete(ctx context.Context, table string, where predicate.Expr) (Result, error) {
	query, args, err := buildDelete(s.dialect, table, where)
	if err != nil {
		return Result{}, fmt.Errorf("delete %s: %w", table, err)
	}
	return s.exec(ctx, "delete", query, args)
}

// Increment adds one to column on every row matching where. The addition
// happens in the database, so concurrent increments are not lost.
func (s *Store) Increment(ctx context.Context, table, column string, where predicate.Expr) (Result, error) {
	query, args, err := buildIncrement(s.dialect, table, column, where)
	if err != nil {
		return Result{}, fmt.Errorf("increment %s.%s: %w", table, column, err)
	}
	return s.exec(ctx, "increment", query, args)
}

// Upsert inserts q.Records in one statement inside one transaction. Rows
// that already exist get only the q.Update columns refreshed.
func (s *Store) Upsert(ctx context.Context, q UpsertQuery) (Result, error) {
	query, args, err := buildUpsert(s.dialect, q)
	if err != nil {
		return Result{}, fmt.Errorf("upsert %s: %w", q.Table, err)
	}

	var result Result
	err = s.pool.With(ctx, func(ctx context.Context, c *pool.Conn) (err error) {
		tx, err := c.BeginTx(ctx, nil)
		if err != nil {
			return &QueryError{Op: "upsert", Query: "BEGIN", Err: err}
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					slog.Warn("upsert rollback failed", "table", q.Table, "err", rbErr)
				}
			}
		}()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return &QueryError{Op: "upsert", Query: query, Err: err}
		}
		result = toResult(res)

		if err = tx.Commit(); err != nil {
			return &QueryError{Op: "upsert", Query: "COMMIT", Err: err}
		}
		return nil
	})

	return result, err
}

func scanRows(r *sql.Rows) ([]Row, error) {
	cols, err := r.Columns()
	if err != nil {
		return nil, err
	}

	rows := []Row{}
	for r.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}

		if err := r.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		rows = append(rows, row)
	}

	if err := r.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}
