// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"golang.org/x/term"
)

// headerWriter is where headers and progress go. Stdout carries results only.
var headerWriter io.Writer = os.Stderr

// LogAnalysisHeader prints a concise, 2-line header before an analysis starts.
func LogAnalysisHeader(cfg *contract.Config, area schema.AreaSummary) {
	source := area.Source
	if source == "" {
		source = "area"
	}

	// Line 1: The area being analyzed
	_, _ = fmt.Fprintf(headerWriter, "🔎 Area: %s (%.1f ha, centre %.4f, %.4f)\n",
		source, area.AreaHa, area.Centroid[0], area.Centroid[1])

	// Line 2: The periods and indices being compared
	_, _ = fmt.Fprintf(headerWriter, "📅 Periods: %s (reference: %s, indices: %s)\n",
		strings.Join(cfg.PeriodIDs(), " → "), cfg.Reference, strings.Join(cfg.Indices, ", "))
}

// LogProgress prints one progress line for a pipeline stage.
func LogProgress(stage schema.Stage, fraction float64, message string) {
	_, _ = fmt.Fprintf(headerWriter, "⏳ %3.0f%% %-11s %s\n", fraction*100, stage, message)
}

// getMaxTableWidth returns the usable width for table output, from the override
// or the terminal, bounded to a readable range.
func getMaxTableWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth <= 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}
	return min(max(termWidth, 40), 160)
}

// wideTable reports whether optional columns fit.
func wideTable(cfg *contract.Config) bool {
	return getMaxTableWidth(cfg) >= 100
}

// truncate shortens s to width runes with an ellipsis.
func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 1 || len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// classLabel returns the label of c, colored when the config asks for colors.
func classLabel(c schema.ChangeClass, cfg *contract.Config) string {
	if cfg.UseColors {
		return contract.GetColorLabel(c, cfg.Language)
	}
	return schema.GetLabel(c, cfg.Language)
}

// successMessage names what writeWithFile wrote for each output mode.
func successMessage(mode schema.OutputMode) string {
	switch mode {
	case schema.JSONOut:
		return "Wrote JSON"
	case schema.CSVOut:
		return "Wrote CSV"
	case schema.ParquetOut:
		return "Wrote Parquet"
	default:
		return "Wrote table"
	}
}
