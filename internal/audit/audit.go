// Package audit emits fire-and-forget events for created and merged memories
// so downstream digest/notification features can consume them without ever
// blocking the pipeline.
package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tessaro/memopipe/internal/metrics"
	"github.com/tessaro/memopipe/internal/models"
)

// Event describes one created or merged memory.
type Event struct {
	MemoryID   string          `json:"memory_id"`
	Category   models.Category `json:"category"`
	Importance int             `json:"importance"`
	Merged     bool            `json:"merged"`
	Queued     bool            `json:"queued"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Notifier fans events out to a single consumer over a bounded channel.
// Publish never blocks: when the buffer is full the event is dropped and
// counted, because notification delivery is best-effort by contract.
type Notifier struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
	logger *slog.Logger
}

// NewNotifier creates a notifier with the given buffer size.
func NewNotifier(buffer int, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{
		ch:     make(chan Event, buffer),
		logger: logger,
	}
}

// Publish emits an event without waiting for acknowledgment.
func (n *Notifier) Publish(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case n.ch <- e:
	default:
		metrics.Inc(metrics.AuditEventsDropped)
		n.logger.Warn("audit: event buffer full, dropping event", "memory_id", e.MemoryID)
	}
}

// Events returns the consumer side of the event stream.
func (n *Notifier) Events() <-chan Event {
	return n.ch
}

// Close stops the notifier; the event channel is closed so consumers drain
// and exit.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
}
