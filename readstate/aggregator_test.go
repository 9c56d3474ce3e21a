package readstate_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/servio/clientcore/notify"
	"github.com/servio/clientcore/readstate"
)

type fakeBackend struct {
	unreadCount  int
	countErr     error
	markErr      error
	markAllErr   error
	deleteErr    error
	markedIDs    []string
	markAllCalls int
	deletedIDs   []string
}

func (b *fakeBackend) UnreadCount(context.Context) (int, error) {
	return b.unreadCount, b.countErr
}

func (b *fakeBackend) MarkRead(_ context.Context, id string) error {
	b.markedIDs = append(b.markedIDs, id)
	return b.markErr
}

func (b *fakeBackend) MarkAllRead(context.Context) error {
	b.markAllCalls++
	return b.markAllErr
}

func (b *fakeBackend) Delete(_ context.Context, id string) error {
	b.deletedIDs = append(b.deletedIDs, id)
	return b.deleteErr
}

type aggregatorFixture struct {
	backend    *fakeBackend
	aggregator *readstate.Aggregator
}

func setupAggregator(t *testing.T) *aggregatorFixture {
	t.Helper()
	backend := &fakeBackend{}
	aggregator, err := readstate.New(backend)
	require.NoError(t, err)
	return &aggregatorFixture{backend: backend, aggregator: aggregator}
}

func unreadRecord(id string) notify.Record {
	return notify.Record{ID: id, Title: "title " + id, Priority: notify.PriorityNormal}
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := readstate.New(nil)
	require.Error(t, err)
}

func TestAggregator_IngestCountsNewUnreadOnce(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	f.aggregator.Ingest(unreadRecord("n-2"))
	f.aggregator.Ingest(unreadRecord("n-1"))

	require.Equal(t, 2, f.aggregator.UnreadCount())
	require.Len(t, f.aggregator.Records(), 2)
}

func TestAggregator_IngestReadRecordDoesNotCount(t *testing.T) {
	f := setupAggregator(t)

	rec := unreadRecord("n-1")
	rec.IsRead = true
	f.aggregator.Ingest(rec)

	require.Equal(t, 0, f.aggregator.UnreadCount())
}

func TestAggregator_ReingestKeepsLocalReadFlag(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	require.NoError(t, f.aggregator.MarkAsRead(context.Background(), "n-1"))

	// The server's copy may lag the optimistic flip.
	f.aggregator.Ingest(unreadRecord("n-1"))

	records := f.aggregator.Records()
	require.Len(t, records, 1)
	require.True(t, records[0].IsRead)
	require.Equal(t, 0, f.aggregator.UnreadCount())
}

func TestAggregator_MarkAsReadDecrementsAndCallsBackend(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	f.aggregator.Ingest(unreadRecord("n-2"))

	require.NoError(t, f.aggregator.MarkAsRead(context.Background(), "n-1"))

	require.Equal(t, 1, f.aggregator.UnreadCount())
	require.Equal(t, []string{"n-1"}, f.backend.markedIDs)
}

func TestAggregator_MarkAsReadNeverGoesNegative(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))

	for range 3 {
		_ = f.aggregator.MarkAsRead(context.Background(), "n-1")
	}
	_ = f.aggregator.MarkAsRead(context.Background(), "n-unknown")

	require.Equal(t, 0, f.aggregator.UnreadCount())
}

func TestAggregator_MarkAsReadKeepsLocalStateOnBackendFailure(t *testing.T) {
	f := setupAggregator(t)
	f.backend.markErr = errors.New("backend down")

	f.aggregator.Ingest(unreadRecord("n-1"))
	err := f.aggregator.MarkAsRead(context.Background(), "n-1")

	require.Error(t, err)
	require.Equal(t, 0, f.aggregator.UnreadCount())
	require.True(t, f.aggregator.Records()[0].IsRead)
}

func TestAggregator_MarkAllAsRead(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	f.aggregator.Ingest(unreadRecord("n-2"))
	f.aggregator.Ingest(unreadRecord("n-3"))

	require.NoError(t, f.aggregator.MarkAllAsRead(context.Background()))

	require.Equal(t, 0, f.aggregator.UnreadCount())
	require.Equal(t, 1, f.backend.markAllCalls)
	for _, rec := range f.aggregator.Records() {
		require.True(t, rec.IsRead)
	}
}

func TestAggregator_DeleteUnreadDecrementsCount(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	f.aggregator.Ingest(unreadRecord("n-2"))

	require.NoError(t, f.aggregator.DeleteNotification(context.Background(), "n-1"))

	require.Equal(t, 1, f.aggregator.UnreadCount())
	require.Equal(t, []string{"n-1"}, f.backend.deletedIDs)

	records := f.aggregator.Records()
	require.Len(t, records, 1)
	require.Equal(t, "n-2", records[0].ID)
}

func TestAggregator_DeleteReadRecordKeepsCount(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	f.aggregator.Ingest(unreadRecord("n-2"))
	require.NoError(t, f.aggregator.MarkAsRead(context.Background(), "n-1"))

	require.NoError(t, f.aggregator.DeleteNotification(context.Background(), "n-1"))
	require.Equal(t, 1, f.aggregator.UnreadCount())
}

func TestAggregator_DeleteUnknownStillCallsBackend(t *testing.T) {
	f := setupAggregator(t)

	require.NoError(t, f.aggregator.DeleteNotification(context.Background(), "n-ghost"))
	require.Equal(t, []string{"n-ghost"}, f.backend.deletedIDs)
	require.Equal(t, 0, f.aggregator.UnreadCount())
}

func TestAggregator_LoadUnreadCountResynchronizes(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	f.backend.unreadCount = 12

	require.NoError(t, f.aggregator.LoadUnreadCount(context.Background()))
	require.Equal(t, 12, f.aggregator.UnreadCount())
}

func TestAggregator_LoadUnreadCountKeepsLocalOnError(t *testing.T) {
	f := setupAggregator(t)

	f.aggregator.Ingest(unreadRecord("n-1"))
	f.backend.countErr = errors.New("backend down")

	require.Error(t, f.aggregator.LoadUnreadCount(context.Background()))
	require.Equal(t, 1, f.aggregator.UnreadCount())
}

func TestAggregator_RecordsReturnsIngestionOrder(t *testing.T) {
	f := setupAggregator(t)

	for _, id := range []string{"n-3", "n-1", "n-2"} {
		f.aggregator.Ingest(unreadRecord(id))
	}

	ids := []string{}
	for _, rec := range f.aggregator.Records() {
		ids = append(ids, rec.ID)
	}
	require.Equal(t, []string{"n-3", "n-1", "n-2"}, ids)
}
