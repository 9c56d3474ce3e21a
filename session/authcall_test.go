package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/servio/clientcore/internal/errors"
	"github.com/servio/clientcore/session"
)

func TestDo_SuccessNeedsNoRefresh(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.SetCredential("stored-credential"))

	attempts := 0
	err := session.Do(context.Background(), f.manager, func(ctx context.Context, credential string) error {
		attempts++
		require.Equal(t, "stored-credential", credential)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, attempts)
	require.Equal(t, 0, f.issuer.IssueCount())
}

func TestDo_RefreshesOnceAndRetriesOnce(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.SetCredential("stale-credential"))
	fresh := f.enqueueCredential(t, time.Hour)

	var seen []string
	err := session.Do(context.Background(), f.manager, func(ctx context.Context, credential string) error {
		seen = append(seen, credential)
		if credential == "stale-credential" {
			return errs.ErrUnauthorized
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []string{"stale-credential", fresh.Token}, seen)
	require.Equal(t, 1, f.issuer.IssueCount())
}

func TestDo_SecondRejectionIsSessionExpired(t *testing.T) {
	f := setupTestFixture(t)
	f.enqueueCredential(t, time.Hour)

	attempts := 0
	err := session.Do(context.Background(), f.manager, func(ctx context.Context, credential string) error {
		attempts++
		return errs.Wrapf(errs.ErrUnauthorized, "GET /bookings returned 401")
	})

	require.ErrorIs(t, err, errs.ErrSessionExpired)
	require.Equal(t, 2, attempts, "original call plus exactly one retry")
	require.Equal(t, 1, f.issuer.IssueCount(), "exactly one forced refresh")
}

func TestDo_FailedRefreshIsSessionExpired(t *testing.T) {
	f := setupTestFixture(t)
	f.issuer.Enqueue(nil, errors.New("connection reset"))

	attempts := 0
	err := session.Do(context.Background(), f.manager, func(ctx context.Context, credential string) error {
		attempts++
		return errs.ErrUnauthorized
	})

	require.ErrorIs(t, err, errs.ErrSessionExpired)
	require.Equal(t, 1, attempts, "no retry without a fresh credential")
}

func TestDo_NonAuthErrorsPassThrough(t *testing.T) {
	f := setupTestFixture(t)
	domainErr := errors.New("booking not found")

	attempts := 0
	err := session.Do(context.Background(), f.manager, func(ctx context.Context, credential string) error {
		attempts++
		return domainErr
	})

	require.ErrorIs(t, err, domainErr)
	require.Equal(t, 1, attempts)
	require.Equal(t, 0, f.issuer.IssueCount())
}
