package core

import (
	"context"
	"testing"

	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestComputeStatistics(t *testing.T) {
	tests := []struct {
		name        string
		hist        schema.Histogram
		scale       float64
		wantValid   int64
		wantPercent map[schema.ChangeClass]float64
	}{
		{
			name:        "all strong loss",
			hist:        schema.Histogram{1: 100},
			scale:       30,
			wantValid:   100,
			wantPercent: map[schema.ChangeClass]float64{schema.StrongLoss: 100},
		},
		{
			name:        "mixed",
			hist:        schema.Histogram{1: 10, 2: 20, 3: 50, 4: 15, 5: 5},
			scale:       10,
			wantValid:   100,
			wantPercent: map[schema.ChangeClass]float64{1: 10, 2: 20, 3: 50, 4: 15, 5: 5},
		},
		{
			name:        "values outside classes ignored",
			hist:        schema.Histogram{0: 40, 3: 30, 6: 7, -1: 2},
			scale:       30,
			wantValid:   30,
			wantPercent: map[schema.ChangeClass]float64{schema.Stable: 100},
		},
		{
			name:      "nothing valid",
			hist:      schema.Histogram{},
			scale:     30,
			wantValid: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := ComputeStatistics(tt.hist, tt.scale)
			require.Len(t, stats.Classes, 5)
			assert.Equal(t, tt.wantValid, stats.ValidPixels)
			assert.Equal(t, tt.scale, stats.Scale)

			var pixels int64
			areas := make([]float64, 0, len(stats.Classes))
			for _, row := range stats.Classes {
				assert.InDelta(t, tt.wantPercent[row.Class], row.Percent, 1e-9, "class %d", row.Class)
				assert.Equal(t, schema.GetPlainLabel(row.Class), row.Label)
				pixels += row.PixelCount
				areas = append(areas, row.AreaHa)
			}
			// Classes partition the valid pixels and their areas sum to the valid area.
			assert.Equal(t, stats.ValidPixels, pixels)
			assert.InDelta(t, stats.ValidAreaHa, floats.Sum(areas), 1e-9)
		})
	}
}

func TestComputeStatisticsHectares(t *testing.T) {
	stats := ComputeStatistics(schema.Histogram{2: 1000}, 30)
	// 1000 pixels of 30 m x 30 m = 900,000 m2 = 90 ha.
	assert.InDelta(t, 90.0, stats.Class(schema.ModerateLoss).AreaHa, 1e-9)
	assert.InDelta(t, 90.0, stats.ValidAreaHa, 1e-9)
}

func TestAggregateRestrictsToArea(t *testing.T) {
	eng, d := detectedDelta(t, 0.5, 0.46)
	agg := &Aggregator{Engine: eng}

	stats, err := agg.Aggregate(context.Background(), d, testArea(t).Ref(), 30)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, stats.Class(schema.Stable).Percent, 1e-9)
	assert.Equal(t, int64(64), stats.ValidPixels)
}
