package iocache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/jmoiron/sqlx"
)

// Table names for analysis tracking.
const (
	analysisRunsTable    = "vegchange_analysis_runs"
	classStatisticsTable = "vegchange_class_statistics"
	migrationsTable      = "vegchange_schema_migrations"
)

// runStatusRunning marks a run that has begun but not ended.
const runStatusRunning = "running"

// AnalysisStoreImpl implements the AnalysisStore interface.
type AnalysisStoreImpl struct {
	db      *sqlx.DB
	backend schema.DatabaseBackend
}

var _ contract.AnalysisStore = &AnalysisStoreImpl{} // Compile-time check

// NewAnalysisStore creates a new AnalysisStore with the specified backend.
func NewAnalysisStore(backend schema.DatabaseBackend, connStr string) (contract.AnalysisStore, error) {
	if backend == schema.NoneBackend {
		return &AnalysisStoreImpl{backend: backend}, nil
	}

	raw, driverName, err := openDB(backend, connStr, contract.GetAnalysisDBFilePath())
	if err != nil {
		return nil, err
	}
	db := sqlx.NewDb(raw, driverName)

	if err := createAnalysisTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create analysis tables: %w", err)
	}
	return &AnalysisStoreImpl{db: db, backend: backend}, nil
}

// createAnalysisTables creates the analysis tracking tables.
func createAnalysisTables(db *sqlx.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{analysisRunsTable, getCreateAnalysisRunsQuery(backend)},
		{classStatisticsTable, getCreateClassStatisticsQuery(backend)},
	}
	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateAnalysisRunsQuery returns the CREATE TABLE query for the runs table.
func getCreateAnalysisRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(analysisRunsTable, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms INT,
				total_pairs INT NOT NULL DEFAULT 0,
				run_status VARCHAR(32) NOT NULL DEFAULT 'running',
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGSERIAL PRIMARY KEY,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms INTEGER,
				total_pairs INTEGER NOT NULL DEFAULT 0,
				run_status TEXT NOT NULL DEFAULT 'running',
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id INTEGER PRIMARY KEY AUTOINCREMENT,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				total_pairs INTEGER NOT NULL DEFAULT 0,
				run_status TEXT NOT NULL DEFAULT 'running',
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getCreateClassStatisticsQuery returns the CREATE TABLE query for the statistics table.
func getCreateClassStatisticsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(classStatisticsTable, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGINT NOT NULL,
				pair_key VARCHAR(128) NOT NULL,
				index_name VARCHAR(64) NOT NULL,
				class_value INT NOT NULL,
				class_label VARCHAR(64) NOT NULL,
				pixel_count BIGINT NOT NULL,
				area_ha DOUBLE NOT NULL,
				percent DOUBLE NOT NULL,
				PRIMARY KEY (analysis_id, pair_key, index_name, class_value)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id BIGINT NOT NULL,
				pair_key TEXT NOT NULL,
				index_name TEXT NOT NULL,
				class_value INTEGER NOT NULL,
				class_label TEXT NOT NULL,
				pixel_count BIGINT NOT NULL,
				area_ha DOUBLE PRECISION NOT NULL,
				percent DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (analysis_id, pair_key, index_name, class_value)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				analysis_id INTEGER NOT NULL,
				pair_key TEXT NOT NULL,
				index_name TEXT NOT NULL,
				class_value INTEGER NOT NULL,
				class_label TEXT NOT NULL,
				pixel_count INTEGER NOT NULL,
				area_ha REAL NOT NULL,
				percent REAL NOT NULL,
				PRIMARY KEY (analysis_id, pair_key, index_name, class_value)
			);
		`, quotedTableName)
	}
}

// BeginAnalysis creates a new analysis run and returns its unique ID.
func (as *AnalysisStoreImpl) BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error) {
	if as.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(analysisRunsTable, as.backend)
	start := formatTime(startTime, as.backend)

	var analysisID int64
	if as.backend == schema.PostgreSQLBackend {
		query := fmt.Sprintf(`INSERT INTO %s (start_time, run_status, config_params) VALUES ($1, $2, $3) RETURNING analysis_id`, quotedTableName)
		err = as.db.QueryRowx(query, start, runStatusRunning, string(configJSON)).Scan(&analysisID)
	} else {
		query := fmt.Sprintf(`INSERT INTO %s (start_time, run_status, config_params) VALUES (?, ?, ?)`, quotedTableName)
		res, execErr := as.db.Exec(query, start, runStatusRunning, string(configJSON))
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert analysis run: %w", execErr)
		}
		analysisID, err = res.LastInsertId()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis run: %w", err)
	}
	return analysisID, nil
}

// EndAnalysis updates the analysis run with completion data.
func (as *AnalysisStoreImpl) EndAnalysis(analysisID int64, endTime time.Time, totalPairs int, status string) error {
	if as.db == nil {
		return nil
	}

	quotedTableName := quoteTableName(analysisRunsTable, as.backend)

	var startTime time.Time
	selectQuery := as.db.Rebind(fmt.Sprintf(`SELECT start_time FROM %s WHERE analysis_id = ?`, quotedTableName))
	if err := as.db.QueryRowx(selectQuery, analysisID).Scan(scanTime{value: &startTime}); err != nil {
		return fmt.Errorf("failed to get start_time for analysis %d: %w", analysisID, err)
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	updateQuery := as.db.Rebind(fmt.Sprintf(
		`UPDATE %s SET end_time = ?, run_duration_ms = ?, total_pairs = ?, run_status = ? WHERE analysis_id = ?`, quotedTableName))
	if _, err := as.db.Exec(updateQuery, formatTime(endTime, as.backend), durationMs, totalPairs, status, analysisID); err != nil {
		return fmt.Errorf("failed to update analysis run: %w", err)
	}
	return nil
}

// RecordStatistics stores the flattened class statistics of a run in one batch.
func (as *AnalysisStoreImpl) RecordStatistics(analysisID int64, rows []schema.StatisticsRow) error {
	if as.db == nil || len(rows) == 0 {
		return nil
	}

	records := make([]schema.ClassStatisticsRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, schema.ClassStatisticsRecord{
			AnalysisID: analysisID,
			PairKey:    r.Pair,
			IndexName:  r.Index,
			ClassValue: int32(r.Class),
			ClassLabel: r.Label,
			PixelCount: r.PixelCount,
			AreaHa:     r.AreaHa,
			Percent:    r.Percent,
		})
	}

	query := fmt.Sprintf(`INSERT INTO %s (analysis_id, pair_key, index_name, class_value, class_label, pixel_count, area_ha, percent)
		VALUES (:analysis_id, :pair_key, :index_name, :class_value, :class_label, :pixel_count, :area_ha, :percent)`,
		quoteTableName(classStatisticsTable, as.backend))

	tx, err := as.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin statistics batch: %w", err)
	}
	if _, err := tx.NamedExec(query, records); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert class statistics: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit class statistics: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (as *AnalysisStoreImpl) Close() error {
	if as.db != nil {
		return as.db.Close()
	}
	return nil
}

// GetStatus returns status information about the analysis store.
func (as *AnalysisStoreImpl) GetStatus() (schema.AnalysisStatus, error) {
	status := schema.AnalysisStatus{
		Backend:    string(as.backend),
		Connected:  as.db != nil,
		TableSizes: make(map[string]int64),
	}
	if as.db == nil {
		return status, nil
	}

	runsTable := quoteTableName(analysisRunsTable, as.backend)
	if err := as.db.Get(&status.TotalRuns, fmt.Sprintf("SELECT COUNT(*) FROM %s", runsTable)); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		lastQuery := fmt.Sprintf("SELECT analysis_id, start_time FROM %s ORDER BY analysis_id DESC LIMIT 1", runsTable)
		if err := as.db.QueryRowx(lastQuery).Scan(&status.LastRunID, scanTime{value: &status.LastRunTime}); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		oldestQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY analysis_id ASC LIMIT 1", runsTable)
		if err := as.db.QueryRowx(oldestQuery).Scan(scanTime{value: &status.OldestRunTime}); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
	}

	for _, table := range []string{analysisRunsTable, classStatisticsTable} {
		var count int64
		if err := as.db.Get(&count, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, as.backend))); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalStatsRows = int(status.TableSizes[classStatisticsTable])

	return status, nil
}

// GetAllAnalysisRuns retrieves all analysis runs from the store.
func (as *AnalysisStoreImpl) GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error) {
	if as.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, start_time, end_time, run_duration_ms, total_pairs, run_status, config_params
		FROM %s ORDER BY analysis_id`, quoteTableName(analysisRunsTable, as.backend))
	rows, err := as.db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.AnalysisRunRecord
	for rows.Next() {
		var record schema.AnalysisRunRecord
		var endTime time.Time
		if err := rows.Scan(&record.AnalysisID, scanTime{value: &record.StartTime}, scanTime{value: &endTime},
			&record.RunDurationMs, &record.TotalPairs, &record.RunStatus, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		if !endTime.IsZero() {
			record.EndTime = &endTime
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return results, nil
}

// GetAllClassStatistics retrieves all class statistics rows from the store.
func (as *AnalysisStoreImpl) GetAllClassStatistics() ([]schema.ClassStatisticsRecord, error) {
	if as.db == nil {
		return nil, nil
	}

	var results []schema.ClassStatisticsRecord
	query := fmt.Sprintf(`SELECT analysis_id, pair_key, index_name, class_value, class_label, pixel_count, area_ha, percent
		FROM %s ORDER BY analysis_id, pair_key, index_name, class_value`, quoteTableName(classStatisticsTable, as.backend))
	if err := as.db.Select(&results, query); err != nil {
		return nil, fmt.Errorf("failed to query class statistics: %w", err)
	}
	return results, nil
}
