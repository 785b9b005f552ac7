package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetMissingKey(t *testing.T) {
	store := openTestStore(t)
	value, ok, err := store.Get(KeyContent)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestSetOverwritesAndRemove(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Set(KeyIsAdmin, "true"))
	require.NoError(t, store.Set(KeyIsAdmin, "false"))

	value, ok, err := store.Get(KeyIsAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", value)

	require.NoError(t, store.Remove(KeyIsAdmin))
	_, ok, err = store.Get(KeyIsAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remove("never-set"))
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(KeyAdminSecret, "s3cret"))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	value, ok, err := second.Get(KeyAdminSecret)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s3cret", value)
	assert.NoError(t, second.Ping(context.Background()))
}
