package schema

import "time"

// CacheStatus represents the status of the durable cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// EphemeralStatus represents the status of the TTL-bounded presentation cache.
type EphemeralStatus struct {
	Backend      string        `json:"backend"`
	Connected    bool          `json:"connected"`
	TotalEntries int           `json:"total_entries"`
	TTL          time.Duration `json:"ttl"`
}

// AnalysisStatus represents the status of the analysis store.
type AnalysisStatus struct {
	Backend        string           `json:"backend"`
	Connected      bool             `json:"connected"`
	TotalRuns      int              `json:"total_runs"`
	LastRunID      int64            `json:"last_run_id"`
	LastRunTime    time.Time        `json:"last_run_time"`
	OldestRunTime  time.Time        `json:"oldest_run_time"`
	TotalStatsRows int              `json:"total_stats_rows"`
	TableSizes     map[string]int64 `json:"table_sizes"`
}
