package schema

import "time"

// AnalysisRunRecord represents a row from the vegchange_analysis_runs table.
type AnalysisRunRecord struct {
	AnalysisID    int64
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	TotalPairs    int32
	RunStatus     string
	ConfigParams  *string
}

// ClassStatisticsRecord represents a row from the vegchange_class_statistics table.
type ClassStatisticsRecord struct {
	AnalysisID int64   `db:"analysis_id"`
	PairKey    string  `db:"pair_key"`
	IndexName  string  `db:"index_name"`
	ClassValue int32   `db:"class_value"`
	ClassLabel string  `db:"class_label"`
	PixelCount int64   `db:"pixel_count"`
	AreaHa     float64 `db:"area_ha"`
	Percent    float64 `db:"percent"`
}
