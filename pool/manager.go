// Package pool bounds and tracks the database connections used by stashbox.
//
// A Manager hands out at most Size connections at a time. Callers that find
// the pool saturated wait on their own goroutine until a connection is
// released, their context ends, or the acquire timeout elapses. Lifecycle
// events are reported to listeners for logging and metrics.
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrPoolExhausted is returned when no connection frees up before the
	// acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrConnection is returned when the driver cannot provide a connection.
	ErrConnection = errors.New("database connection failed")
)

// Config controls pool sizing and wait behaviour.
type Config struct {
	// Size is the maximum number of connections handed out at once.
	Size int
	// AcquireTimeout bounds how long Acquire waits for a free connection.
	// Zero waits until the caller's context ends.
	AcquireTimeout time.Duration
	// Listeners receive every lifecycle event.
	Listeners []Listener
}

// Stats is a snapshot of pool usage.
type Stats struct {
	Size      int
	InUse     int
	PeakInUse int
}

// Manager owns a *sql.DB and limits concurrent use of its connections.
type Manager struct {
	db        *sql.DB
	sem       *semaphore.Weighted
	size      int
	timeout   time.Duration
	listeners []Listener

	inUse atomic.Int64
	peak  atomic.Int64
}

// Open builds a Manager over connector. The connector is wrapped so that
// every new driver connection emits EventConnect.
func Open(connector driver.Connector, cfg Config) (*Manager, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("open pool: size must be at least 1, got %d", cfg.Size)
	}

	m := &Manager{
		sem:       semaphore.NewWeighted(int64(cfg.Size)),
		size:      cfg.Size,
		timeout:   cfg.AcquireTimeout,
		listeners: cfg.Listeners,
	}

	db := sql.OpenDB(&notifyingConnector{
		Connector: connector,
		onConnect: func() { m.emit(EventConnect, 0) },
	})
	db.SetMaxOpenConns(cfg.Size)
	db.SetMaxIdleConns(cfg.Size)

	m.db = db
	return m, nil
}

// Acquire returns a dedicated connection. The caller must Release it.
func (m *Manager) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()

	if !m.sem.TryAcquire(1) {
		m.emit(EventEnqueue, 0)

		waitCtx := ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}

		if err := m.sem.Acquire(waitCtx, 1); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("acquire connection: %w", ctxErr)
			}
			return nil, fmt.Errorf("acquire connection after %s: %w", time.Since(start).Round(time.Millisecond), ErrPoolExhausted)
		}
	}

	raw, err := m.db.Conn(ctx)
	if err != nil {
		m.sem.Release(1)
		return nil, fmt.Errorf("acquire connection: %w: %w", ErrConnection, err)
	}

	n := m.inUse.Add(1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	m.emit(EventAcquire, time.Since(start))

	return &Conn{Conn: raw, m: m}, nil
}

// With acquires a connection, runs fn with it and releases it, including
// when fn panics.
func (m *Manager) With(ctx context.Context, fn func(ctx context.Context, c *Conn) error) error {
	c, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.Release()

	return fn(ctx, c)
}

// Stats returns a snapshot of pool usage.
func (m *Manager) Stats() Stats {
	return Stats{
		Size:      m.size,
		InUse:     int(m.inUse.Load()),
		PeakInUse: int(m.peak.Load()),
	}
}

// Ping verifies a connection can be established.
func (m *Manager) Ping(ctx context.Context) error {
	return m.With(ctx, func(ctx context.Context, c *Conn) error {
		return c.PingContext(ctx)
	})
}

// DB exposes the underlying handle for schema management. Queries issued
// through it bypass the pool limit.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Close closes every connection.
func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) emit(kind EventKind, waited time.Duration) {
	if len(m.listeners) == 0 {
		return
	}

	ev := Event{
		Kind:   kind,
		InUse:  int(m.inUse.Load()),
		Size:   m.size,
		Waited: waited,
	}
	for _, l := range m.listeners {
		l(ev)
	}
}

// Conn is a connection checked out of a Manager.
type Conn struct {
	*sql.Conn
	m    *Manager
	once sync.Once
}

// Release returns the connection to the pool. Calls after the first are
// ignored.
func (c *Conn) Release() {
	released := false
	c.once.Do(func() {
		released = true
		if err := c.Conn.Close(); err != nil {
			slog.Warn("failed to return connection", "err", err)
		}
		c.m.inUse.Add(-1)
		c.m.sem.Release(1)
		c.m.emit(EventRelease, 0)
	})

	if !released {
		slog.Warn("connection released twice")
	}
}
