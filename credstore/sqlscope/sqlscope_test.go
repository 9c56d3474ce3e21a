package sqlscope_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/servio/clientcore/credstore/sqlscope"
	errs "github.com/servio/clientcore/internal/errors"
)

func TestScope_RoundTrip(t *testing.T) {
	scope, err := sqlscope.New(":memory:")
	require.NoError(t, err)
	defer scope.Close()

	_, err = scope.Get("auth_token")
	require.ErrorIs(t, err, errs.ErrKeyNotFound)

	require.NoError(t, scope.Set("auth_token", "first"))
	value, err := scope.Get("auth_token")
	require.NoError(t, err)
	require.Equal(t, "first", value)

	// Upsert overwrites.
	require.NoError(t, scope.Set("auth_token", "second"))
	value, err = scope.Get("auth_token")
	require.NoError(t, err)
	require.Equal(t, "second", value)

	require.NoError(t, scope.Delete("auth_token"))
	_, err = scope.Get("auth_token")
	require.ErrorIs(t, err, errs.ErrKeyNotFound)

	// Deleting an absent key is not an error.
	require.NoError(t, scope.Delete("auth_token"))
}

func TestScope_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")

	scope, err := sqlscope.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, scope.Set("auth_token", "survives-restart"))
	require.NoError(t, scope.Close())

	reopened, err := sqlscope.New(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get("auth_token")
	require.NoError(t, err)
	require.Equal(t, "survives-restart", value)
}
