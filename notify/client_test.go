package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/servio/clientcore/credstore"
	"github.com/servio/clientcore/credstore/memscope"
	errs "github.com/servio/clientcore/internal/errors"
	"github.com/servio/clientcore/notify"
	"github.com/servio/clientcore/session"
	"github.com/servio/clientcore/session/issuerfakes"
)

type clientFixture struct {
	issuer  *issuerfakes.FakeIssuer
	manager *session.Manager
	server  *httptest.Server
	client  *notify.Client

	lock     sync.Mutex
	requests []*http.Request
}

func setupClient(t *testing.T, handler http.HandlerFunc) *clientFixture {
	t.Helper()
	f := &clientFixture{issuer: issuerfakes.NewFakeIssuer()}

	store, err := credstore.New(memscope.New())
	require.NoError(t, err)

	f.manager, err = session.New(f.issuer, store)
	require.NoError(t, err)
	t.Cleanup(f.manager.Stop)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lock.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.lock.Unlock()
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)

	f.client, err = notify.NewClient(f.server.URL, f.manager, notify.WithHTTPClient(f.server.Client()))
	require.NoError(t, err)
	return f
}

// seedCredential refreshes once so the manager holds a known token.
func (f *clientFixture) seedCredential(t *testing.T, token string) {
	t.Helper()
	f.issuer.Enqueue(&session.Credential{Token: token, ExpiresAt: time.Now().Add(time.Hour)}, nil)
	_, err := f.manager.Refresh(context.Background())
	require.NoError(t, err)
}

func (f *clientFixture) requestCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.requests)
}

func (f *clientFixture) request(i int) *http.Request {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.requests[i]
}

func TestNewClient_Validation(t *testing.T) {
	_, err := notify.NewClient("", nil)
	require.Error(t, err)

	_, err = notify.NewClient("http://localhost", nil)
	require.Error(t, err)
}

func TestClient_ListUnreadSendsBearerAndDecodes(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"n-2","title":"Two","priority":"high"},{"id":"n-1","title":"One"}]}`))
	})
	f.seedCredential(t, "token-abc")

	records, err := f.client.ListUnread(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "n-2", records[0].ID)
	require.Equal(t, notify.PriorityHigh, records[0].Priority)

	req := f.request(0)
	require.Equal(t, "Bearer token-abc", req.Header.Get("Authorization"))
	require.Equal(t, "/notifications", req.URL.Path)
	require.Equal(t, "10", req.URL.Query().Get("limit"))
	require.Equal(t, "false", req.URL.Query().Get("read"))
}

func TestClient_UnreadCount(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"count":7}`))
	})
	f.seedCredential(t, "token-abc")

	count, err := f.client.UnreadCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.Equal(t, "/notifications/unread-count", f.request(0).URL.Path)
}

func TestClient_RefreshesOnceOnUnauthorized(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"count":3}`))
	})
	f.seedCredential(t, "token-stale")
	f.issuer.Enqueue(&session.Credential{Token: "token-fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil)

	count, err := f.client.UnreadCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, 2, f.requestCount())
	require.Equal(t, "Bearer token-stale", f.request(0).Header.Get("Authorization"))
	require.Equal(t, "Bearer token-fresh", f.request(1).Header.Get("Authorization"))
}

func TestClient_PersistentUnauthorizedIsSessionExpired(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.seedCredential(t, "token-stale")
	f.issuer.Enqueue(&session.Credential{Token: "token-fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil)

	_, err := f.client.UnreadCount(context.Background())
	require.ErrorIs(t, err, errs.ErrSessionExpired)
	require.Equal(t, 2, f.requestCount())
}

func TestClient_MarkReadHitsRecordEndpoint(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	f.seedCredential(t, "token-abc")

	require.NoError(t, f.client.MarkRead(context.Background(), "n-9"))

	req := f.request(0)
	require.Equal(t, http.MethodPut, req.Method)
	require.Equal(t, "/notifications/n-9/read", req.URL.Path)
}

func TestClient_MarkAllRead(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	f.seedCredential(t, "token-abc")

	require.NoError(t, f.client.MarkAllRead(context.Background()))

	req := f.request(0)
	require.Equal(t, http.MethodPut, req.Method)
	require.Equal(t, "/notifications/read-all", req.URL.Path)
}

func TestClient_Delete(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	f.seedCredential(t, "token-abc")

	require.NoError(t, f.client.Delete(context.Background(), "n-9"))

	req := f.request(0)
	require.Equal(t, http.MethodDelete, req.Method)
	require.Equal(t, "/notifications/n-9", req.URL.Path)
}

func TestClient_ServerRefusalSurfaces(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})
	f.seedCredential(t, "token-abc")

	_, err := f.client.ListUnread(context.Background(), 10)
	require.ErrorIs(t, err, errs.ErrBackendRefused)
}

func TestClient_ServerErrorSurfaces(t *testing.T) {
	f := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	f.seedCredential(t, "token-abc")

	_, err := f.client.UnreadCount(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrSessionExpired)
	require.Equal(t, 1, f.requestCount())
}
