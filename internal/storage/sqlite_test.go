package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBackendRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	backend, err := NewSQLiteBackend(dbPath)
	require.NoError(t, err)

	data, err := backend.Load()
	require.NoError(t, err)
	assert.Nil(t, data)

	store, err := Open(backend, 0)
	require.NoError(t, err)
	_, err = store.Register("@alice", 42, "WalletA", t0)
	require.NoError(t, err)
	_, err = store.RecordPayment("@alice", "WalletA", t0.Add(time.Minute))
	require.NoError(t, err)
	_, err = store.MarkSeen("sig1")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	backend, err = NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	reopened, err := Open(backend, 0)
	require.NoError(t, err)
	defer reopened.Close()

	m, err := reopened.Member("@alice")
	require.NoError(t, err)
	assert.Equal(t, t0, m.Join.Time)
	assert.Equal(t, t0.Add(time.Minute), m.LastPaid.Time)
	assert.True(t, reopened.IsSeen("sig1"))
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	store, err := Open(backend, 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.MarkSeen("sig1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestImportFileSeedsEmptyBackend(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "slc_users.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(legacyDocument), 0o644))

	backend, err := NewSQLiteBackend(filepath.Join(dir, "state.db"))
	require.NoError(t, err)

	imported, err := ImportFile(backend, jsonPath)
	require.NoError(t, err)
	assert.True(t, imported)

	imported, err = ImportFile(backend, jsonPath)
	require.NoError(t, err)
	assert.False(t, imported, "second import must not overwrite")

	store, err := Open(backend, 0)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Member("@alice")
	assert.NoError(t, err)
}

func TestImportFileMissingOrInvalid(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewSQLiteBackend(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer backend.Close()

	imported, err := ImportFile(backend, filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.False(t, imported)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = ImportFile(backend, bad)
	assert.Error(t, err)
}
