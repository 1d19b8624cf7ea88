package iocache

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteCacheStore(t *testing.T) *CacheStoreImpl {
	t.Helper()
	store, err := NewCacheStore(durableTable, schema.SQLiteBackend, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*CacheStoreImpl)
}

func TestSQLiteCacheStoreOperations(t *testing.T) {
	store := newSQLiteCacheStore(t)

	_, _, _, err := store.Get("composite:missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, store.Set("composite:abc", []byte(`{"period":"1990s"}`), 1, 1700000000))
	value, version, ts, err := store.Get("composite:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"1990s"}`, string(value))
	assert.Equal(t, 1, version)
	assert.Equal(t, int64(1700000000), ts)

	// Upsert replaces in place.
	require.NoError(t, store.Set("composite:abc", []byte(`{"period":"2000s"}`), 2, 1700000100))
	value, version, _, err = store.Get("composite:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2000s"}`, string(value))
	assert.Equal(t, 2, version)

	require.NoError(t, store.Set("delta:def", []byte("{}"), 1, 1700000200))
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, int64(1700000100), status.OldestEntryTime.Unix())
	assert.Equal(t, int64(1700000200), status.LastEntryTime.Unix())
	assert.Greater(t, status.TableSizeBytes, int64(0))
}

func TestCacheStoreNoneBackend(t *testing.T) {
	store, err := NewCacheStore(durableTable, schema.NoneBackend, "")
	require.NoError(t, err)

	require.NoError(t, store.Set("k", []byte("v"), 1, 1))
	_, _, _, err = store.Get("k")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestNewCacheStoreErrors(t *testing.T) {
	_, err := NewCacheStore("bad name", schema.SQLiteBackend, "")
	assert.Error(t, err)

	_, err = NewCacheStore(durableTable, schema.DatabaseBackend("oracle"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database backend")
}

func TestCacheStoreQueries(t *testing.T) {
	tests := []struct {
		backend     schema.DatabaseBackend
		placeholder string
		upsert      string
		valueType   string
	}{
		{schema.SQLiteBackend, "?", "INSERT OR REPLACE", "BLOB"},
		{schema.MySQLBackend, "?", "ON DUPLICATE KEY UPDATE", "LONGBLOB"},
		{schema.PostgreSQLBackend, "$1", "ON CONFLICT (cache_key)", "BYTEA"},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			store := &CacheStoreImpl{tableName: durableTable, backend: tt.backend}
			assert.Equal(t, tt.placeholder, store.getPlaceholder())
			assert.Contains(t, store.getUpsertQuery(), tt.upsert)

			create := getCreateTableQuery(durableTable, tt.backend)
			assert.Contains(t, create, "CREATE TABLE IF NOT EXISTS")
			assert.Contains(t, create, tt.valueType)
			assert.Contains(t, create, durableTable)
		})
	}
}
