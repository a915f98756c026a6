package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitsync/internal/models"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(KeySyncQueue)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(KeySyncQueue, []byte(`[{"id":"a"}]`)))
	data, err := store.Get(KeySyncQueue)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(data))

	require.NoError(t, store.Put(KeySyncQueue, []byte(`[]`)))
	data, err = store.Get(KeySyncQueue)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	require.NoError(t, store.Delete(KeySyncQueue))
	_, err = store.Get(KeySyncQueue)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, store.Delete(KeySyncQueue))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Put(KeyLastSync, []byte("1730000000000")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "last-sync-time.json", entries[0].Name())
}

func TestFileStoreSanitisesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("../escape/attempt", []byte("x")))
	data, err := store.Get("../escape/attempt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fitsync.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(KeySyncQueue)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(KeySyncQueue, []byte(`[1,2,3]`)))
	require.NoError(t, store.Put(KeySyncQueue, []byte(`[4]`)))
	data, err := store.Get(KeySyncQueue)
	require.NoError(t, err)
	assert.Equal(t, `[4]`, string(data))

	require.NoError(t, store.Delete(KeySyncQueue))
	_, err = store.Get(KeySyncQueue)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheEnforcesTTLOnRead(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("students", []string{"a", "b"}, time.Minute)

	got, ok := cache.Get("students")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	// Still stored, but expired entries miss on read.
	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("students")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheInvalidateByPattern(t *testing.T) {
	cache := NewCache()
	cache.Set("students", 1, time.Minute)
	cache.Set("students:42", 2, time.Minute)
	cache.Set("plans", 3, time.Minute)

	cache.Invalidate("students")
	_, ok := cache.Get("students")
	assert.False(t, ok)
	_, ok = cache.Get("students:42")
	assert.False(t, ok)
	_, ok = cache.Get("plans")
	assert.True(t, ok)

	cache.Invalidate("")
	assert.Equal(t, 0, cache.Len())
}

func TestDrainHistoryPersistsAndCaps(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	h := NewDrainHistory(store, 3)
	_, ok := h.Latest()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		h.Append(models.DrainResult{
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
			Attempted:  i,
		})
	}
	assert.Len(t, h.HistoryN(0), 3)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 4, latest.Attempted)

	reloaded := NewDrainHistory(store, 3)
	assert.Len(t, reloaded.HistoryN(0), 3)
	assert.Len(t, reloaded.HistoryN(2), 2)
	last, ok := reloaded.Latest()
	require.True(t, ok)
	assert.Equal(t, 4, last.Attempted)
}

func TestDrainHistoryToleratesCorruptBlob(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(KeyDrainLog, []byte("not json")))

	h := NewDrainHistory(store, 3)
	assert.Empty(t, h.HistoryN(0))
}
