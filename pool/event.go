package pool

import (
	"context"
	"log/slog"
	"time"
)

// EventKind identifies a pool lifecycle event.
type EventKind int

const (
	// EventConnect fires when the driver opens a new physical connection.
	EventConnect EventKind = iota
	// EventAcquire fires when a caller receives a connection.
	EventAcquire
	// EventEnqueue fires when a caller has to wait for a connection.
	EventEnqueue
	// EventRelease fires when a connection goes back to the pool.
	EventRelease
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventAcquire:
		return "acquire"
	case EventEnqueue:
		return "enqueue"
	case EventRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Event describes a pool state change.
type Event struct {
	Kind  EventKind
	InUse int
	Size  int
	// Waited is set on EventAcquire.
	Waited time.Duration
}

// Listener observes pool events. Listeners run synchronously on the
// goroutine that triggered the event and must not block.
type Listener func(Event)

// LogListener logs every event at debug level, and saturation at info.
func LogListener(ev Event) {
	level := slog.LevelDebug
	if ev.Kind == EventEnqueue {
		level = slog.LevelInfo
	}

	slog.Log(context.Background(), level, "db pool "+ev.Kind.String(),
		"in_use", ev.InUse,
		"size", ev.Size,
		"waited", ev.Waited,
	)
}
