// Package readstate derives and mutates notification read state. It is
// the single source of truth for the unread count; mutations are
// optimistic, with the backend call issued after the local flip.
package readstate

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/servio/clientcore/notify"
)

// Backend is the slice of the notifications API the aggregator needs.
// notify.Client satisfies it.
type Backend interface {
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// Aggregator caches records and tracks the unread count. Local mutations
// are applied before the backend call and are not rolled back if the call
// fails; LoadUnreadCount resynchronizes from the server.
type Aggregator struct {
	backend Backend

	lock    sync.Mutex
	records map[string]*notify.Record
	order   []string
	unread  int
}

// New creates an Aggregator.
func New(backend Backend) (*Aggregator, error) {
	if backend == nil {
		return nil, errors.New("[readstate.New] backend is required")
	}
	return &Aggregator{
		backend: backend,
		records: make(map[string]*notify.Record),
	}, nil
}

// Ingest caches a record delivered by the poller. A previously unseen
// unread record increments the unread count; re-ingesting a known id only
// refreshes the cached copy.
func (a *Aggregator) Ingest(record notify.Record) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if existing, ok := a.records[record.ID]; ok {
		// Keep the local read flag: it may be optimistically ahead of the
		// server's copy.
		record.IsRead = record.IsRead || existing.IsRead
		*existing = record
		return
	}

	copied := record
	a.records[record.ID] = &copied
	a.order = append(a.order, record.ID)
	if !record.IsRead {
		a.unread++
	}
}

// UnreadCount returns the current local unread count.
func (a *Aggregator) UnreadCount() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.unread
}

// LoadUnreadCount resynchronizes the unread count from the server.
func (a *Aggregator) LoadUnreadCount(ctx context.Context) error {
	count, err := a.backend.UnreadCount(ctx)
	if err != nil {
		return errors.Wrap(err, "[Aggregator.LoadUnreadCount] fetching count")
	}

	a.lock.Lock()
	a.unread = count
	a.lock.Unlock()
	return nil
}

// MarkAsRead optimistically flips the local read flag and decrements the
// unread count, then issues the backend call. A backend failure is logged
// but the local mutation stands.
func (a *Aggregator) MarkAsRead(ctx context.Context, id string) error {
	a.lock.Lock()
	if record, ok := a.records[id]; ok && !record.IsRead {
		record.IsRead = true
		a.decrementUnread()
	}
	a.lock.Unlock()

	if err := a.backend.MarkRead(ctx, id); err != nil {
		log.Err(err).Str("notification_id", id).Msg("Backend mark-as-read failed; local state kept")
		return errors.Wrap(err, "[Aggregator.MarkAsRead] backend call")
	}
	return nil
}

// MarkAllAsRead flips every cached record and zeroes the unread count,
// then issues the backend call. Same non-rollback policy as MarkAsRead.
func (a *Aggregator) MarkAllAsRead(ctx context.Context) error {
	a.lock.Lock()
	for _, record := range a.records {
		record.IsRead = true
	}
	a.unread = 0
	a.lock.Unlock()

	if err := a.backend.MarkAllRead(ctx); err != nil {
		log.Err(err).Msg("Backend mark-all-as-read failed; local state kept")
		return errors.Wrap(err, "[Aggregator.MarkAllAsRead] backend call")
	}
	return nil
}

// DeleteNotification removes the record locally, decrementing the unread
// count if it was unread, then issues the backend call.
func (a *Aggregator) DeleteNotification(ctx context.Context, id string) error {
	a.lock.Lock()
	if record, ok := a.records[id]; ok {
		if !record.IsRead {
			a.decrementUnread()
		}
		delete(a.records, id)
		for i, recordID := range a.order {
			if recordID == id {
				a.order = append(a.order[:i], a.order[i+1:]...)
				break
			}
		}
	}
	a.lock.Unlock()

	if err := a.backend.Delete(ctx, id); err != nil {
		log.Err(err).Str("notification_id", id).Msg("Backend delete failed; local state kept")
		return errors.Wrap(err, "[Aggregator.DeleteNotification] backend call")
	}
	return nil
}

// Records returns the cached records in ingestion order.
func (a *Aggregator) Records() []notify.Record {
	a.lock.Lock()
	defer a.lock.Unlock()

	records := make([]notify.Record, 0, len(a.order))
	for _, id := range a.order {
		records = append(records, *a.records[id])
	}
	return records
}

// decrementUnread clamps at zero. Caller holds the lock.
func (a *Aggregator) decrementUnread() {
	if a.unread > 0 {
		a.unread--
	}
}
