package outwriter

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFormatters(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		value     float64
		expected  string
	}{
		{"hectares", 2, 5.7634, "5.76"},
		{"whole percent", 0, 99.6, "100"},
		{"delta", 3, -0.20049, "-0.200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fmtFloat, intFmt := createFormatters(tt.precision)
			assert.Equal(t, tt.expected, fmtFloat(tt.value))
			assert.Equal(t, "%d", intFmt)
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	err := writeJSON(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON")
}

func TestWriteCSVWithHeader(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, []string{"period", "description"}, func(w *csv.Writer) error {
		return w.Write([]string{"2010s", "Landsat 8, early years"})
	})
	require.NoError(t, err)
	assert.Equal(t, "period,description\n2010s,\"Landsat 8, early years\"\n", buf.String())

	err = writeCSVWithHeader(&buf, []string{"period"}, func(*csv.Writer) error { return assert.AnError })
	assert.Equal(t, assert.AnError, err)
}

func TestWriteWithFile(t *testing.T) {
	var stderr bytes.Buffer
	headerWriter = &stderr
	t.Cleanup(func() { headerWriter = os.Stderr })

	path := filepath.Join(t.TempDir(), "stats.csv")
	err := writeWithFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "pair,index\n")
		return err
	}, "Wrote CSV")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pair,index\n", string(content))
	assert.Contains(t, stderr.String(), "Wrote CSV to "+path)

	err = writeWithFile(path, func(io.Writer) error { return assert.AnError }, "Wrote CSV")
	assert.Equal(t, assert.AnError, err)

	err = writeWithFile("/nonexistent/path/stats.csv", func(io.Writer) error { return nil }, "Wrote CSV")
	assert.Error(t, err)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, []string{"Period", "Scenes"}, [][]string{{"1990s", "12"}, {"present", "30"}}))
	out := buf.String()
	assert.Contains(t, out, "PERIOD")
	assert.Contains(t, out, "present")
	assert.Contains(t, out, "30")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Landsat", truncate("Landsat", 10))
	assert.Equal(t, "Land…", truncate("Landsat 8", 5))
	assert.Equal(t, "Pérdi…", truncate("Pérdida Fuerte", 6))
}
