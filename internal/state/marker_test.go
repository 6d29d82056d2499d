package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerStore_WriteReadRemove(t *testing.T) {
	t.Parallel()
	store := NewMarkerStore(t.TempDir())
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Write(Marker{Node: "node-1", SessionID: "s1", Role: "worker", CordonedAt: at, PID: 42}))

	exists, err := store.Exists("node-1")
	require.NoError(t, err)
	assert.True(t, exists)

	m, found, err := store.Read("node-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "s1", m.SessionID)
	assert.Equal(t, 42, m.PID)
	assert.True(t, at.Equal(m.CordonedAt))

	require.NoError(t, store.Remove("node-1"))
	exists, err = store.Exists("node-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMarkerStore_ReadMissing(t *testing.T) {
	t.Parallel()
	store := NewMarkerStore(t.TempDir())

	m, found, err := store.Read("node-1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, m)
}

func TestMarkerStore_RemoveIsIdempotent(t *testing.T) {
	t.Parallel()
	store := NewMarkerStore(t.TempDir())

	assert.NoError(t, store.Remove("node-1"))
	require.NoError(t, store.Write(Marker{Node: "node-1"}))
	assert.NoError(t, store.Remove("node-1"))
	assert.NoError(t, store.Remove("node-1"))
}

func TestMarkerStore_WriteLeavesNoTemporaryFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewMarkerStore(dir)

	require.NoError(t, store.Write(Marker{Node: "node-1", SessionID: "a"}))
	require.NoError(t, store.Write(Marker{Node: "node-1", SessionID: "b"}))

	entries, err := os.ReadDir(filepath.Join(dir, "markers"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "node-1.json", entries[0].Name())

	m, _, err := store.Read("node-1")
	require.NoError(t, err)
	assert.Equal(t, "b", m.SessionID)
}

func TestMarkerStore_CorruptMarkerStillCounts(t *testing.T) {
	t.Parallel()
	store := NewMarkerStore(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path("node-1")), 0o750))
	require.NoError(t, os.WriteFile(store.Path("node-1"), []byte("{not json"), 0o600))

	m, found, err := store.Read("node-1")
	assert.Error(t, err)
	assert.True(t, found)
	assert.Equal(t, "node-1", m.Node)
}

func TestMarkerStore_WriteRequiresNode(t *testing.T) {
	t.Parallel()
	assert.Error(t, NewMarkerStore(t.TempDir()).Write(Marker{}))
}
