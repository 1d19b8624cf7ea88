// Package parquet provides data structures and functions for exporting vegetation
// change statistics to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/vegchange/schema"
	"github.com/parquet-go/parquet-go"
)

// AnalysisRun represents a single change analysis run with metadata.
// This struct maps to the vegchange_analysis_runs database table.
type AnalysisRun struct {
	// AnalysisID is the unique identifier for this analysis run
	AnalysisID int64 `parquet:"analysis_id,snappy"`

	// StartTime is when the analysis began
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the analysis finished (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the analysis run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// TotalPairs is the number of period pairs compared in this run
	TotalPairs int32 `parquet:"total_pairs,snappy"`

	// RunStatus is completed, failed, or empty while running
	RunStatus string `parquet:"run_status,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// ClassStatistic is one change class of one (pair, index) of a run.
// This struct maps to the vegchange_class_statistics database table.
type ClassStatistic struct {
	AnalysisID int64   `parquet:"analysis_id,snappy"`
	PairKey    string  `parquet:"pair_key,dict,snappy"`
	IndexName  string  `parquet:"index_name,dict,snappy"`
	ClassValue int32   `parquet:"class_value,snappy"`
	ClassLabel string  `parquet:"class_label,dict,snappy"`
	PixelCount int64   `parquet:"pixel_count,snappy"`
	AreaHa     float64 `parquet:"area_ha,snappy"`
	Percent    float64 `parquet:"percent,snappy"`
}

// ResultStatistic is one statistics row of a single analysis written by the analyze
// command. Rows carry the time of the analysis rather than a run identifier.
type ResultStatistic struct {
	AnalysisTime time.Time `parquet:"analysis_time,snappy"`
	PairKey      string    `parquet:"pair_key,dict,snappy"`
	IndexName    string    `parquet:"index_name,dict,snappy"`
	ClassValue   int32     `parquet:"class_value,snappy"`
	ClassLabel   string    `parquet:"class_label,dict,snappy"`
	PixelCount   int64     `parquet:"pixel_count,snappy"`
	AreaHa       float64   `parquet:"area_ha,snappy"`
	Percent      float64   `parquet:"percent,snappy"`
}

// writeRows writes rows to w with a schema inferred from T.
func writeRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// writeFile creates outputPath and writes rows to it.
func writeFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return writeRows(file, rows)
}

// WriteAnalysisRunsParquet writes a slice of AnalysisRun structs to a Parquet file.
func WriteAnalysisRunsParquet(data []AnalysisRun, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteClassStatisticsParquet writes a slice of ClassStatistic structs to a Parquet file.
func WriteClassStatisticsParquet(data []ClassStatistic, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteResultStatistics writes the statistics of one analysis to w.
func WriteResultStatistics(w io.Writer, data []ResultStatistic) error {
	return writeRows(w, data)
}

// ConvertAnalysisRunRecords converts schema.AnalysisRunRecord to AnalysisRun for Parquet export.
func ConvertAnalysisRunRecords(records []schema.AnalysisRunRecord) []AnalysisRun {
	result := make([]AnalysisRun, len(records))
	for i, record := range records {
		result[i] = AnalysisRun{
			AnalysisID:    record.AnalysisID,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalPairs:    record.TotalPairs,
			RunStatus:     record.RunStatus,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertClassStatisticsRecords converts schema.ClassStatisticsRecord to ClassStatistic for Parquet export.
func ConvertClassStatisticsRecords(records []schema.ClassStatisticsRecord) []ClassStatistic {
	result := make([]ClassStatistic, len(records))
	for i, r := range records {
		result[i] = ClassStatistic(r)
	}
	return result
}

// ConvertStatisticsRows stamps flattened result rows with the analysis time.
func ConvertStatisticsRows(rows []schema.StatisticsRow, analysisTime time.Time) []ResultStatistic {
	result := make([]ResultStatistic, len(rows))
	for i, r := range rows {
		result[i] = ResultStatistic{
			AnalysisTime: analysisTime,
			PairKey:      r.Pair,
			IndexName:    r.Index,
			ClassValue:   int32(r.Class),
			ClassLabel:   r.Label,
			PixelCount:   r.PixelCount,
			AreaHa:       r.AreaHa,
			Percent:      r.Percent,
		}
	}
	return result
}
