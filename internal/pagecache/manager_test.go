package pagecache

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/sushant-115/logicmaze/internal/pagestore"
)

func setupManager(t *testing.T, poolSize int) (*Manager, *pagestore.Store) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := pagestore.Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m, err := New(poolSize, store, zap.NewNop(), noop.NewMeterProvider().Meter(""))
	require.NoError(t, err)
	return m, store
}

// Scenario 1: basic round-trip.
func TestManager_BasicRoundTrip(t *testing.T) {
	m, _ := setupManager(t, 10)

	id, page, err := m.NewPage()
	require.NoError(t, err)
	require.NotNil(t, page)

	const message = "Hello, Logic Maze Database!"
	copy(page.Data(), message)

	require.True(t, m.Unpin(id, true))
	require.True(t, m.Flush(id))

	fetched, err := m.Fetch(id)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, message, string(fetched.Data()[:len(message)]))
	require.True(t, m.Unpin(id, false))
}

// Scenario 2: persistence across reopen.
func TestManager_PersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	store, err := pagestore.Open(path, zap.NewNop())
	require.NoError(t, err)
	m, err := New(10, store, zap.NewNop(), noop.NewMeterProvider().Meter(""))
	require.NoError(t, err)

	ids := make([]pagestore.PageID, 5)
	messages := make([]string, 5)
	for i := 0; i < 5; i++ {
		id, page, err := m.NewPage()
		require.NoError(t, err)
		msg := fmt.Sprintf("Page %d data - test persistence", i)
		copy(page.Data(), msg)
		ids[i] = id
		messages[i] = msg
		require.True(t, m.Unpin(id, true))
	}
	require.NoError(t, m.FlushAll())
	require.NoError(t, store.Close())

	reopenedStore, err := pagestore.Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reopenedStore.Close()
	reopenedManager, err := New(10, reopenedStore, zap.NewNop(), noop.NewMeterProvider().Meter(""))
	require.NoError(t, err)

	for i, id := range ids {
		page, err := reopenedManager.Fetch(id)
		require.NoError(t, err)
		require.NotNil(t, page)
		require.Equal(t, messages[i], string(page.Data()[:len(messages[i])]))
		require.True(t, reopenedManager.Unpin(id, false))
	}
}

// Scenario 3: high hit rate.
func TestManager_HighHitRate(t *testing.T) {
	m, _ := setupManager(t, 10)

	ids := make([]pagestore.PageID, 5)
	for i := range ids {
		id, _, err := m.NewPage()
		require.NoError(t, err)
		ids[i] = id
		require.True(t, m.Unpin(id, false))
	}

	for i := 0; i < 10; i++ {
		for _, id := range ids {
			page, err := m.Fetch(id)
			require.NoError(t, err)
			require.NotNil(t, page)
			require.True(t, m.Unpin(id, false))
		}
	}

	require.Greater(t, m.HitRate(), 0.80)
	require.Equal(t, uint64(0), m.MissCount())
}

// Scenario 4: forced eviction.
func TestManager_ForcedEviction(t *testing.T) {
	m, _ := setupManager(t, 5)

	ids := make([]pagestore.PageID, 10)
	for i := range ids {
		id, page, err := m.NewPage()
		require.NoError(t, err)
		copy(page.Data(), []byte("data"))
		ids[i] = id
		require.True(t, m.Unpin(id, true))
	}

	missesBefore := m.MissCount()
	for i := 0; i < 5; i++ {
		page, err := m.Fetch(ids[i])
		require.NoError(t, err)
		require.NotNil(t, page)
		require.True(t, m.Unpin(ids[i], false))
	}
	require.Greater(t, m.MissCount(), missesBefore)
}

// Scenario 5: deletion of an unpinned page.
func TestManager_DeleteUnpinnedPage(t *testing.T) {
	m, _ := setupManager(t, 10)

	id, _, err := m.NewPage()
	require.NoError(t, err)
	require.True(t, m.Unpin(id, false))
	require.True(t, m.Delete(id))

	_, _, err = m.NewPage()
	require.NoError(t, err)
}

// Scenario 6: capacity exhaustion.
func TestManager_CapacityExhaustion(t *testing.T) {
	m, _ := setupManager(t, 2)

	id1, page1, err := m.NewPage()
	require.NoError(t, err)
	require.NotNil(t, page1)
	id2, page2, err := m.NewPage()
	require.NoError(t, err)
	require.NotNil(t, page2)

	id3, page3, err := m.NewPage()
	require.NoError(t, err)
	require.Nil(t, page3)
	require.Equal(t, pagestore.InvalidPageID, id3)

	require.True(t, m.Unpin(id1, false))

	id4, page4, err := m.NewPage()
	require.NoError(t, err)
	require.NotNil(t, page4)
	require.True(t, m.Unpin(id4, false))
	require.True(t, m.Unpin(id2, false))
}

func TestManager_UnpinUnknownPageFails(t *testing.T) {
	m, _ := setupManager(t, 4)
	require.False(t, m.Unpin(pagestore.PageID(999), false))
}

func TestManager_UnpinAlreadyUnpinnedFails(t *testing.T) {
	m, _ := setupManager(t, 4)
	id, _, err := m.NewPage()
	require.NoError(t, err)
	require.True(t, m.Unpin(id, false))
	require.False(t, m.Unpin(id, false))
}

func TestManager_DeletePinnedPageFails(t *testing.T) {
	m, _ := setupManager(t, 4)
	id, _, err := m.NewPage()
	require.NoError(t, err)
	require.False(t, m.Delete(id))
	require.True(t, m.Unpin(id, false))
}

func TestManager_FlushUnknownPageFails(t *testing.T) {
	m, _ := setupManager(t, 4)
	require.False(t, m.Flush(pagestore.PageID(999)))
}

func TestManager_HitRateZeroWhenNoActivity(t *testing.T) {
	m, _ := setupManager(t, 4)
	require.Equal(t, 0.0, m.HitRate())
}

func TestManager_FetchUnpinnedThenRefetchIsHit(t *testing.T) {
	m, _ := setupManager(t, 4)
	id, _, err := m.NewPage()
	require.NoError(t, err)
	require.True(t, m.Unpin(id, false))

	missesBefore := m.MissCount()
	page, err := m.Fetch(id)
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Equal(t, missesBefore, m.MissCount())
	require.True(t, m.Unpin(id, false))
}
