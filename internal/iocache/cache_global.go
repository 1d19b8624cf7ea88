package iocache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/vegchange/schema"
)

// Global Manager instance for main logic.
var (
	Manager   = &CacheStoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores initializes the global manager. Only the first call has any effect.
func InitStores(ctx context.Context, opts StoreOptions) error {
	var initErr error
	initOnce.Do(func() {
		if err := Manager.open(ctx, opts); err != nil {
			Manager.Close()
			initErr = err
		}
	})
	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() {
	closeOnce.Do(Manager.Close)
}

// ClearCache clears the durable cache for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the table.
// For NoneBackend, it does nothing.
func ClearCache(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	return clearDatabase(backend, dbFilePath, connStr, durableTable)
}

// ClearAnalysis clears the analysis data for the specified backend, including the
// migration bookkeeping table.
func ClearAnalysis(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	return clearDatabase(backend, dbFilePath, connStr, classStatisticsTable, analysisRunsTable, migrationsTable)
}

// ClearEphemeral drops every entry of the ephemeral backend.
func ClearEphemeral(ctx context.Context, backend schema.EphemeralBackend, connStr string) error {
	switch backend {
	case schema.RedisEphemeral:
		store, err := NewRedisEphemeralStore(ctx, connStr, 0)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.Clear(ctx)
	case schema.MemoryEphemeral, schema.NoneEphemeral:
		// Nothing outlives the process.
		return nil
	default:
		return fmt.Errorf("unsupported ephemeral backend for clearing: %s", backend)
	}
}

func clearDatabase(backend schema.DatabaseBackend, dbFilePath, connStr string, tables ...string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		driverName, _ := driverFor(backend)
		for _, table := range tables {
			if err := clearSQLTable(driverName, connStr, table, backend); err != nil {
				return err
			}
		}
		return nil

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}

// clearSQLTable connects to the SQL database and drops the table if it exists.
func clearSQLTable(driverName, connStr, tableName string, backend schema.DatabaseBackend) error {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", driverName, err)
	}

	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(tableName, backend))
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	return nil
}
