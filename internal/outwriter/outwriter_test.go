package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *schema.AnalysisResult {
	stats := schema.ClassStatistics{ValidPixels: 100, ValidAreaHa: 9, Scale: 30}
	for _, c := range schema.AllChangeClasses {
		row := schema.ClassStat{Class: c, Label: schema.GetPlainLabel(c), Color: schema.ChangeClassInfo[c].Color}
		switch c {
		case schema.StrongLoss:
			row.PixelCount, row.AreaHa, row.Percent = 25, 2.25, 25
		case schema.Stable:
			row.PixelCount, row.AreaHa, row.Percent = 75, 6.75, 75
		}
		stats.Classes = append(stats.Classes, row)
	}
	return &schema.AnalysisResult{
		Reference: "2010s",
		Periods:   []string{"2010s", "present"},
		Indices:   []string{"ndvi"},
		Area:      schema.AreaSummary{Fingerprint: "abc123", Source: "bbox", AreaHa: 9},
		Composites: map[string]schema.Composite{
			"2010s":   {Period: "2010s", Sensors: []string{schema.Landsat8}, SceneCount: 4, Bands: []string{"red", "nir", "ndvi"}},
			"present": {Period: "present", Sensors: []string{schema.Landsat8, schema.Sentinel2}, SceneCount: 9, Bands: []string{"red", "nir", "ndvi"}},
		},
		Statistics: map[string]map[string]schema.ClassStatistics{"2010s_to_present": {"ndvi": stats}},
		Exports:    []schema.ExportHandle{{ID: "task-1", Description: "vegchange_2010s_to_present_ndvi", Destination: "drive"}},
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteAnalysisResultTable(t *testing.T) {
	cfg := &contract.Config{Output: schema.TextOut, Precision: 2, Width: 120, Workers: 4, CacheBackend: schema.SQLiteBackend}

	var buf bytes.Buffer
	require.NoError(t, WriteAnalysisResult(&buf, sampleResult(), cfg, 150*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "2010s → present · ndvi")
	assert.Contains(t, out, "Strong Loss")
	assert.Contains(t, out, "2.25")
	assert.Contains(t, out, "75.00%")
	assert.Contains(t, out, "#d7191c", "wide tables include the class color")
	assert.Contains(t, out, "task-1")
	assert.Contains(t, out, "Analysis completed in 150ms with 4 workers")
}

func TestWriteAnalysisResultNarrowTable(t *testing.T) {
	cfg := &contract.Config{Output: schema.TextOut, Precision: 1, Width: 60}

	var buf bytes.Buffer
	require.NoError(t, WriteAnalysisResult(&buf, sampleResult(), cfg, time.Second))
	assert.NotContains(t, buf.String(), "#d7191c")
	assert.Contains(t, buf.String(), "25.0%")
}

func TestWriteAnalysisResultCSV(t *testing.T) {
	cfg := &contract.Config{Output: schema.CSVOut, Precision: 3}

	var buf bytes.Buffer
	require.NoError(t, WriteAnalysisResult(&buf, sampleResult(), cfg, time.Second))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, statisticsHeader, records[0])
	assert.Equal(t, []string{"2010s_to_present", "ndvi", "1", "Strong Loss", "25", "2.250", "25.000"}, records[1])
	assert.Equal(t, "0", records[2][4], "empty classes are still listed")
}

func TestWriteAnalysisResultSpanishLabels(t *testing.T) {
	tests := []struct {
		name   string
		output schema.OutputMode
	}{
		{"text", schema.TextOut},
		{"csv", schema.CSVOut},
		{"json", schema.JSONOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &contract.Config{Output: tt.output, Precision: 2, Width: 120, Workers: 1, Language: schema.Spanish}
			result := sampleResult()

			var buf bytes.Buffer
			require.NoError(t, WriteAnalysisResult(&buf, result, cfg, time.Second))

			assert.Contains(t, buf.String(), "Pérdida Fuerte")
			assert.NotContains(t, buf.String(), "Strong Loss")
			assert.Equal(t, "Strong Loss", result.Statistics["2010s_to_present"]["ndvi"].Class(schema.StrongLoss).Label,
				"the caller's result keeps its labels")
		})
	}
}

func TestWriteAnalysisResultJSON(t *testing.T) {
	cfg := &contract.Config{Output: schema.JSONOut}

	var buf bytes.Buffer
	require.NoError(t, WriteAnalysisResult(&buf, sampleResult(), cfg, time.Second))

	var decoded schema.AnalysisResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2010s", decoded.Reference)
	assert.InDelta(t, 25.0, decoded.Statistics["2010s_to_present"]["ndvi"].Class(schema.StrongLoss).Percent, 1e-9)
}

func TestPrintAnalysisResultParquet(t *testing.T) {
	headerWriter = &bytes.Buffer{}
	t.Cleanup(func() { headerWriter = os.Stderr })

	path := filepath.Join(t.TempDir(), "stats.parquet")
	cfg := &contract.Config{Output: schema.ParquetOut, OutputFile: path}
	require.NoError(t, PrintAnalysisResult(sampleResult(), cfg, time.Second))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(raw[:4]))
}

func TestWritePeriods(t *testing.T) {
	tests := []struct {
		name   string
		output schema.OutputMode
		want   []string
	}{
		{"table", schema.TextOut, []string{"1990s", "1985-01-01", "LANDSAT/LT05/C02/T1_L2"}},
		{"csv", schema.CSVOut, []string{"id,start,end,sensors,description", "present,"}},
		{"json", schema.JSONOut, []string{`"id": "2000s"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := &contract.Config{Output: tt.output, Width: 120}
			require.NoError(t, WritePeriods(&buf, schema.DefaultPeriods, cfg))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestWriteIndices(t *testing.T) {
	reg := registry.New()

	var buf bytes.Buffer
	require.NoError(t, WriteIndices(&buf, reg.Indices(), reg.Sensors(), &contract.Config{Output: schema.JSONOut}))
	var model catalogue
	require.NoError(t, json.Unmarshal(buf.Bytes(), &model))
	var names []string
	for _, idx := range model.Indices {
		names = append(names, idx.Name)
	}
	assert.Contains(t, names, "ndvi")
	assert.Contains(t, names, "nbr")
	require.NotEmpty(t, model.Sensors)
	assert.NotEmpty(t, model.Sensors[0].Bands)

	buf.Reset()
	require.NoError(t, WriteIndices(&buf, reg.Indices(), reg.Sensors(), &contract.Config{Output: schema.TextOut, Width: 60}))
	assert.Contains(t, buf.String(), "CLOUD_COVER")
}

func TestWritePreviewAndExportStatus(t *testing.T) {
	composite := schema.Composite{Period: "present", Sensors: []string{schema.Landsat8}, SceneCount: 6}

	var buf bytes.Buffer
	require.NoError(t, WritePreview(&buf, "present", "https://tiles.example/abc", composite, &contract.Config{}))
	assert.Contains(t, buf.String(), "present composite from 6 scenes")
	assert.Contains(t, buf.String(), "https://tiles.example/abc")

	buf.Reset()
	status := schema.ExportStatus{Handle: schema.ExportHandle{ID: "task-9"}, State: schema.ExportFailed, Error: "quota"}
	require.NoError(t, WriteExportStatus(&buf, status, &contract.Config{Output: schema.CSVOut}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "task-9,failed,,quota", lines[1])
}

func TestLogAnalysisHeader(t *testing.T) {
	var buf bytes.Buffer
	headerWriter = &buf
	t.Cleanup(func() { headerWriter = os.Stderr })

	cfg := &contract.Config{
		Periods:   []schema.PeriodWindow{{ID: "2010s"}, {ID: "present"}},
		Reference: "2010s",
		Indices:   []string{"ndvi", "nbr"},
	}
	LogAnalysisHeader(cfg, schema.AreaSummary{Source: "osm-way:42", AreaHa: 12.5})
	LogProgress(schema.StageIndexing, 0.5, "indices for present")

	out := buf.String()
	assert.Contains(t, out, "osm-way:42 (12.5 ha")
	assert.Contains(t, out, "2010s → present")
	assert.Contains(t, out, "ndvi, nbr")
	assert.Contains(t, out, " 50% indexing")
}

func TestWriteChartFile(t *testing.T) {
	headerWriter = &bytes.Buffer{}
	t.Cleanup(func() { headerWriter = os.Stderr })

	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, WriteChartFile(path, sampleResult(), schema.English))
	require.NoError(t, WriteChartFile(filepath.Join(t.TempDir(), "es.png"), sampleResult(), schema.Spanish))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	err = WriteChartFile(path, &schema.AnalysisResult{}, schema.English)
	assert.Error(t, err)
}

func TestParseHexColor(t *testing.T) {
	r, g, b, _ := parseHexColor("#1a9641").RGBA()
	assert.Equal(t, uint32(0x1a), r>>8)
	assert.Equal(t, uint32(0x96), g>>8)
	assert.Equal(t, uint32(0x41), b>>8)

	r, _, _, _ = parseHexColor("green").RGBA()
	assert.Equal(t, uint32(128), r>>8)
}
