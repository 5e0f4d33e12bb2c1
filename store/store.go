// Package store runs the small set of SQL operations stashbox needs:
// select, insert, update, delete, increment and upsert.
//
// Every operation borrows exactly one connection from a pool.Manager and
// returns it before the call completes, on success and on failure. Filters
// are predicate expressions compiled for the store's dialect; values are
// always sent as bound arguments.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sagarc03/stashbox/pool"
	"github.com/sagarc03/stashbox/predicate"
)

var (
	// ErrNoRows is returned by SelectOne when nothing matches.
	ErrNoRows = errors.New("no rows")
	// ErrUnscoped is returned when a mutation has an empty filter and the
	// caller did not pass predicate.All.
	ErrUnscoped = errors.New("mutation without filter")
	// ErrInvalidQuery is returned for malformed query descriptions.
	ErrInvalidQuery = errors.New("invalid query")
)

// QueryError wraps a failure reported by the database.
type QueryError struct {
	Op    string
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Row is one result row keyed by column name.
type Row map[string]any

// Values maps column names to the values to write.
type Values map[string]any

// Result reports the effect of a mutation as seen by the driver. Drivers
// that cannot report a field leave it zero.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Store executes queries through a pool.Manager.
type Store struct {
	pool    *pool.Manager
	dialect predicate.Dialect
}

// New returns a Store that speaks dialect d over p.
func New(p *pool.Manager, d predicate.Dialect) *Store {
	return &Store{pool: p, dialect: d}
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() predicate.Dialect {
	return s.dialect
}

func (s *Store) exec(ctx context.Context, op, query string, args []any) (Result, error) {
	var result Result

	err := s.pool.With(ctx, func(ctx context.Context, c *pool.Conn) error {
		res, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			return &QueryError{Op: op, Query: query, Err: err}
		}
		result = toResult(res)
		return nil
	})

	return result, err
}

func toResult(res sql.Result) Result {
	var r Result
	if n, err := res.RowsAffected(); err == nil {
		r.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		r.LastInsertID = id
	}
	return r
}
