package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/parquet"
	"github.com/huangsam/vegchange/schema"
)

// statisticsHeader is the column layout shared by the csv output.
var statisticsHeader = []string{"pair", "index", "class", "label", "pixel_count", "area_ha", "percent"}

// PrintAnalysisResult outputs the analysis result, dispatching based on the output format configured.
func PrintAnalysisResult(result *schema.AnalysisResult, cfg *contract.Config, duration time.Duration) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteAnalysisResult(w, result, cfg, duration)
	}, successMessage(cfg.Output))
}

// WriteAnalysisResult writes result to w in the configured output format.
func WriteAnalysisResult(w io.Writer, result *schema.AnalysisResult, cfg *contract.Config, duration time.Duration) error {
	if cfg.Language != "" && cfg.Language != schema.English {
		result = result.Localized(cfg.Language)
	}
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeJSON(w, result); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeCSVStatistics(w, result, cfg.Precision); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		rows := parquet.ConvertStatisticsRows(schema.FlattenStatistics(result), result.StartedAt)
		if err := parquet.WriteResultStatistics(w, rows); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	default:
		return writeResultTable(w, result, cfg, duration)
	}
	return nil
}

// writeCSVStatistics writes one row per (pair, index, class).
func writeCSVStatistics(w io.Writer, result *schema.AnalysisResult, precision int) error {
	fmtFloat, intFmt := createFormatters(precision)
	return writeCSVWithHeader(w, statisticsHeader, func(cw *csv.Writer) error {
		for _, row := range schema.FlattenStatistics(result) {
			rec := []string{
				row.Pair,
				row.Index,
				strconv.Itoa(row.Class),
				row.Label,
				fmt.Sprintf(intFmt, row.PixelCount),
				fmtFloat(row.AreaHa),
				fmtFloat(row.Percent),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeResultTable generates and writes the human-readable tables.
func writeResultTable(w io.Writer, result *schema.AnalysisResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	wide := wideTable(cfg)

	// 1. Composites, one row per period
	compositeRows := make([][]string, 0, len(result.Periods))
	for _, id := range result.Periods {
		c := result.Composites[id]
		row := []string{id, strings.Join(c.Sensors, ", "), strconv.Itoa(c.SceneCount)}
		if wide {
			row = append(row, strings.Join(c.Bands, " "))
		}
		compositeRows = append(compositeRows, row)
	}
	compositeHeaders := []string{"Period", "Sensors", "Scenes"}
	if wide {
		compositeHeaders = append(compositeHeaders, "Bands")
	}
	if err := writeTable(w, compositeHeaders, compositeRows); err != nil {
		return err
	}

	// 2. Class breakdown per pair and index
	for _, pair := range result.PairKeys() {
		byIndex := result.Statistics[pair]
		for _, index := range schema.SortedKeys(byIndex) {
			stats := byIndex[index]
			if _, err := fmt.Fprintf(w, "\n%s · %s (valid area: %s ha, scale: %gm)\n",
				strings.Replace(pair, "_to_", " → ", 1), index, fmtFloat(stats.ValidAreaHa), stats.Scale); err != nil {
				return err
			}

			headers := []string{"Class", "Label", "Pixels", "Area (ha)", "Percent"}
			if wide {
				headers = append(headers, "Color")
			}
			rows := make([][]string, 0, len(stats.Classes))
			for _, c := range stats.Classes {
				row := []string{
					strconv.Itoa(int(c.Class)),
					classLabel(c.Class, cfg),
					fmt.Sprintf(intFmt, c.PixelCount),
					fmtFloat(c.AreaHa),
					fmtFloat(c.Percent) + "%",
				}
				if wide {
					row = append(row, c.Color)
				}
				rows = append(rows, row)
			}
			if err := writeTable(w, headers, rows); err != nil {
				return err
			}
		}
	}

	// 3. Exports and summary
	for _, h := range result.Exports {
		if _, err := fmt.Fprintf(w, "📤 Export %s submitted as task %s (%s)\n", h.Description, h.ID, h.Destination); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Compared %d pairs over %d indices for %s\n",
		len(result.Statistics), len(result.Indices), truncate(areaLabel(result.Area), getMaxTableWidth(cfg)-30)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

func areaLabel(area schema.AreaSummary) string {
	if area.Source == "" {
		return area.Fingerprint
	}
	return area.Source
}
