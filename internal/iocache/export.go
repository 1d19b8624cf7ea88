package iocache

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/parquet"
)

// ExecuteAnalysisExport exports the global analysis store to Parquet files.
func ExecuteAnalysisExport(outputFile string) error {
	return ExportAnalysis(Manager.GetAnalysisStore(), outputFile, os.Stdout)
}

// ExportAnalysis writes every run and statistics row of store to two Parquet files
// named after outputFile, reporting progress to w.
func ExportAnalysis(store contract.AnalysisStore, outputFile string, w io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("analysis tracking is not enabled")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get analysis status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no analysis data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total analysis runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total statistics rows: %d\n", status.TotalStatsRows)

	runs, err := store.GetAllAnalysisRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve analysis runs: %w", err)
	}
	stats, err := store.GetAllClassStatistics()
	if err != nil {
		return fmt.Errorf("failed to retrieve class statistics: %w", err)
	}

	parquetRuns := parquet.ConvertAnalysisRunRecords(runs)
	runsFile := outputFile + ".analysis_runs.parquet"
	if err := parquet.WriteAnalysisRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write analysis runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d analysis runs to: %s\n", len(parquetRuns), runsFile)

	parquetStats := parquet.ConvertClassStatisticsRecords(stats)
	statsFile := outputFile + ".class_statistics.parquet"
	if err := parquet.WriteClassStatisticsParquet(parquetStats, statsFile); err != nil {
		return fmt.Errorf("failed to write class statistics: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d statistics rows to: %s\n", len(parquetStats), statsFile)

	_, _ = fmt.Fprintln(w, "\nExport complete! The Parquet files can be read with DuckDB, Pandas (via pyarrow), Apache Arrow or Spark.")
	return nil
}
