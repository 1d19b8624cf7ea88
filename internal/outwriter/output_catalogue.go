package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// IndexInfo is the printable form of a registered index.
type IndexInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SensorInfo is the printable form of a registered sensor.
type SensorInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Bands         []string `json:"bands"`
	QABand        string   `json:"qa_band"`
	Scale         float64  `json:"scale"`
	Offset        float64  `json:"offset"`
	CloudProperty string   `json:"cloud_property"`
	MaskBits      []uint   `json:"mask_bits"`
}

// catalogue is what the indices command prints.
type catalogue struct {
	Indices []IndexInfo  `json:"indices"`
	Sensors []SensorInfo `json:"sensors"`
}

// PrintPeriods prints the period catalogue using the configured output format.
func PrintPeriods(periods []schema.PeriodWindow, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WritePeriods(w, periods, cfg)
	}, successMessage(cfg.Output))
}

// WritePeriods writes the period catalogue to w.
func WritePeriods(w io.Writer, periods []schema.PeriodWindow, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeJSON(w, periods)
	case schema.CSVOut:
		return writeCSVWithHeader(w, []string{"id", "start", "end", "sensors", "description"}, func(cw *csv.Writer) error {
			for _, p := range periods {
				rec := []string{p.ID, p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly), strings.Join(p.Sensors, "|"), p.Description}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		rows := make([][]string, 0, len(periods))
		for _, p := range periods {
			rows = append(rows, []string{
				p.ID,
				p.Start.Format(time.DateOnly),
				p.End.Format(time.DateOnly),
				strings.Join(p.Sensors, ", "),
				truncate(p.Description, getMaxTableWidth(cfg)/3),
			})
		}
		return writeTable(w, []string{"ID", "Start", "End", "Sensors", "Description"}, rows)
	}
}

// PrintIndices prints the registered indices and sensors using the configured output format.
func PrintIndices(indices []registry.IndexSpec, sensors []registry.SensorSchema, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return WriteIndices(w, indices, sensors, cfg)
	}, successMessage(cfg.Output))
}

// WriteIndices writes the registered indices and sensors to w.
func WriteIndices(w io.Writer, indices []registry.IndexSpec, sensors []registry.SensorSchema, cfg *contract.Config) error {
	model := buildCatalogue(indices, sensors)
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeJSON(w, model)
	case schema.CSVOut:
		return writeCSVWithHeader(w, []string{"kind", "name", "description"}, func(cw *csv.Writer) error {
			for _, idx := range model.Indices {
				if err := cw.Write([]string{"index", idx.Name, idx.Description}); err != nil {
					return err
				}
			}
			for _, s := range model.Sensors {
				if err := cw.Write([]string{"sensor", s.ID, s.Name}); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		indexRows := make([][]string, 0, len(model.Indices))
		for _, idx := range model.Indices {
			indexRows = append(indexRows, []string{idx.Name, idx.Description})
		}
		if err := writeTable(w, []string{"Index", "Description"}, indexRows); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}

		sensorRows := make([][]string, 0, len(model.Sensors))
		for _, s := range model.Sensors {
			row := []string{s.ID, s.Name, s.CloudProperty}
			if wideTable(cfg) {
				row = append(row, s.QABand, fmtFloat(s.Scale), fmtFloat(s.Offset))
			}
			sensorRows = append(sensorRows, row)
		}
		headers := []string{"Sensor", "Name", "Cloud Property"}
		if wideTable(cfg) {
			headers = append(headers, "QA Band", "Scale", "Offset")
		}
		return writeTable(w, headers, sensorRows)
	}
}

func buildCatalogue(indices []registry.IndexSpec, sensors []registry.SensorSchema) catalogue {
	var model catalogue
	for _, idx := range indices {
		model.Indices = append(model.Indices, IndexInfo{Name: idx.Name, Description: idx.Description})
	}
	for _, s := range sensors {
		model.Sensors = append(model.Sensors, SensorInfo{
			ID:            s.ID,
			Name:          s.Name,
			Bands:         s.NativeBands(),
			QABand:        s.QABand,
			Scale:         s.Scale,
			Offset:        s.Offset,
			CloudProperty: s.CloudProperty,
			MaskBits:      slices.Clone(s.MaskBits),
		})
	}
	return model
}
