// Package toast presents notification records as transient UI entries: a
// bounded, deduplicated queue with per-entry auto-removal and a delayed
// mark-as-read side effect.
package toast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/servio/clientcore/internal/clock"
	"github.com/servio/clientcore/internal/metrics"
	"github.com/servio/clientcore/notify"
)

const (
	// DefaultCapacity bounds the queue; inserting beyond it evicts the
	// oldest entry first, regardless of priority.
	DefaultCapacity = 5

	// DefaultDuration is how long a toast stays up before auto-removal.
	DefaultDuration = 5 * time.Second

	// DefaultMarkReadDelay gives the user a moment to see a toast before
	// its record is marked as read.
	DefaultMarkReadDelay = time.Second
)

// ReadMarker is the slice of the read-state aggregator the queue needs.
type ReadMarker interface {
	MarkAsRead(ctx context.Context, id string) error
}

// Entry wraps a record queued for presentation. ClientID is the record id,
// or a generated id for purely local toasts.
type Entry struct {
	ClientID string
	Record   notify.Record

	removeTimer clock.Timer
	readTimer   clock.Timer
}

// Queue is the toast queue engine. Rendering order is insertion order;
// eviction never reorders the remaining entries.
type Queue struct {
	clk           clock.Clock
	marker        ReadMarker
	metrics       *metrics.Collector
	capacity      int
	duration      time.Duration
	markReadDelay time.Duration

	lock    sync.Mutex
	entries []*Entry
	active  bool
}

// Option modifies a Queue at construction time.
type Option func(*Queue)

// WithClock injects a clock, primarily for testing.
func WithClock(clk clock.Clock) Option {
	return func(q *Queue) { q.clk = clk }
}

// WithCapacity overrides the queue bound.
func WithCapacity(n int) Option {
	return func(q *Queue) { q.capacity = n }
}

// WithDuration overrides the default auto-removal delay.
func WithDuration(d time.Duration) Option {
	return func(q *Queue) { q.duration = d }
}

// WithReadMarker wires the delayed mark-as-read side effect for unread
// server-backed records.
func WithReadMarker(m ReadMarker) Option {
	return func(q *Queue) { q.marker = m }
}

// WithMarkReadDelay overrides the pause before a shown unread toast is
// marked as read.
func WithMarkReadDelay(d time.Duration) Option {
	return func(q *Queue) { q.markReadDelay = d }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(q *Queue) { q.metrics = c }
}

// NewQueue creates a toast queue.
func NewQueue(options ...Option) *Queue {
	q := &Queue{
		clk:           clock.New(),
		capacity:      DefaultCapacity,
		duration:      DefaultDuration,
		markReadDelay: DefaultMarkReadDelay,
		active:        true,
	}
	for _, opt := range options {
		opt(q)
	}
	return q
}

// Add queues a server-backed record. Inserting a ClientID already present
// is a no-op.
func (q *Queue) Add(record notify.Record) {
	q.insert(record.ID, record, q.duration)
}

// Show queues a purely local toast not backed by any server record, e.g.
// "settings saved" feedback. Returns the generated client id.
func (q *Queue) Show(title, body, category string, duration time.Duration) string {
	if duration <= 0 {
		duration = q.duration
	}
	clientID := uuid.New().String()
	q.insert(clientID, notify.Record{
		ID:        clientID,
		Title:     title,
		Body:      body,
		Category:  category,
		Priority:  notify.PriorityNormal,
		IsRead:    true, // local toasts have no read state to sync
		CreatedAt: q.clk.Now(),
	}, duration)
	return clientID
}

// Remove dismisses an entry immediately. No-op if absent.
func (q *Queue) Remove(clientID string) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for i, entry := range q.entries {
		if entry.ClientID == clientID {
			entry.stopTimers()
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.entries)
}

// Snapshot returns the queued records in insertion order, for renderers.
func (q *Queue) Snapshot() []notify.Record {
	q.lock.Lock()
	defer q.lock.Unlock()

	records := make([]notify.Record, 0, len(q.entries))
	for _, entry := range q.entries {
		records = append(records, entry.Record)
	}
	return records
}

// Stop cancels every pending timer and rejects further inserts.
func (q *Queue) Stop() {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.active = false
	for _, entry := range q.entries {
		entry.stopTimers()
	}
	q.entries = nil
}

func (q *Queue) insert(clientID string, record notify.Record, duration time.Duration) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if !q.active {
		return
	}
	for _, entry := range q.entries {
		if entry.ClientID == clientID {
			return
		}
	}

	entry := &Entry{ClientID: clientID, Record: record}
	q.entries = append(q.entries, entry)
	if q.metrics != nil {
		q.metrics.RecordToastShown()
	}

	// FIFO eviction: oldest insertion goes first, never lowest priority.
	for len(q.entries) > q.capacity {
		evicted := q.entries[0]
		evicted.stopTimers()
		q.entries = q.entries[1:]
		if q.metrics != nil {
			q.metrics.RecordToastEvicted()
		}
	}

	entry.removeTimer = q.clk.AfterFunc(duration, func() {
		q.Remove(clientID)
	})

	if !record.IsRead && q.marker != nil {
		entry.readTimer = q.clk.AfterFunc(q.markReadDelay, func() {
			if err := q.marker.MarkAsRead(context.Background(), record.ID); err != nil {
				log.Err(err).Str("notification_id", record.ID).Msg("Failed to mark toast as read")
			}
		})
	}
}

func (e *Entry) stopTimers() {
	if e.removeTimer != nil {
		e.removeTimer.Stop()
	}
	if e.readTimer != nil {
		e.readTimer.Stop()
	}
}
