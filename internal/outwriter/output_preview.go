package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// previewOutput is the machine readable form of a preview.
type previewOutput struct {
	Period    string           `json:"period"`
	URL       string           `json:"url"`
	Composite schema.Composite `json:"composite"`
}

// PrintPreview prints a quick-look URL using the configured output format.
func PrintPreview(period, url string, composite schema.Composite, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WritePreview(w, period, url, composite, cfg)
	}, successMessage(cfg.Output))
}

// WritePreview writes a quick-look URL to w.
func WritePreview(w io.Writer, period, url string, composite schema.Composite, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeJSON(w, previewOutput{Period: period, URL: url, Composite: composite})
	case schema.CSVOut:
		return writeCSVWithHeader(w, []string{"period", "scenes", "sensors", "url"}, func(cw *csv.Writer) error {
			return cw.Write([]string{period, strconv.Itoa(composite.SceneCount), strings.Join(composite.Sensors, "|"), url})
		})
	default:
		_, err := fmt.Fprintf(w, "🖼  %s composite from %d scenes (%s)\n%s\n",
			period, composite.SceneCount, strings.Join(composite.Sensors, ", "), url)
		return err
	}
}

// PrintExportStatus prints the state of an export task using the configured output format.
func PrintExportStatus(status schema.ExportStatus, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteExportStatus(w, status, cfg)
	}, successMessage(cfg.Output))
}

// WriteExportStatus writes the state of an export task to w.
func WriteExportStatus(w io.Writer, status schema.ExportStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeJSON(w, status)
	case schema.CSVOut:
		return writeCSVWithHeader(w, []string{"id", "state", "uri", "error"}, func(cw *csv.Writer) error {
			return cw.Write([]string{status.Handle.ID, string(status.State), status.URI, status.Error})
		})
	default:
		if _, err := fmt.Fprintf(w, "Export %s: %s\n", status.Handle.ID, status.State); err != nil {
			return err
		}
		if status.URI != "" {
			if _, err := fmt.Fprintf(w, "Output: %s\n", status.URI); err != nil {
				return err
			}
		}
		if status.Error != "" {
			if _, err := fmt.Fprintf(w, "Error: %s\n", status.Error); err != nil {
				return err
			}
		}
		return nil
	}
}
