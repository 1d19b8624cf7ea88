package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name    string
		t       Thresholds
		wantErr bool
	}{
		{"ndvi defaults", DefaultThresholds["ndvi"], false},
		{"nbr defaults", DefaultThresholds["nbr"], false},
		{"stable band wider than moderate", Thresholds{-0.3, -0.1, -0.05, 0.05, 0.1, 0.3}, false},
		{"strong equals moderate loss", Thresholds{-0.1, -0.1, -0.05, 0.05, 0.1, 0.3}, true},
		{"moderate loss above stable min", Thresholds{-0.3, -0.01, -0.05, 0.05, 0.1, 0.3}, true},
		{"stable inverted", Thresholds{-0.3, -0.1, 0.05, -0.05, 0.1, 0.3}, true},
		{"stable max above moderate gain", Thresholds{-0.3, -0.1, -0.05, 0.2, 0.1, 0.3}, true},
		{"strong equals moderate gain", Thresholds{-0.3, -0.1, -0.05, 0.05, 0.3, 0.3}, true},
		{"nan", Thresholds{math.NaN(), -0.1, -0.05, 0.05, 0.1, 0.3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.t.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestThresholdsClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds["ndvi"]
	eps := 1e-9

	tests := []struct {
		d    float64
		want ChangeClass
	}{
		{th.StrongLoss - eps, StrongLoss},
		{th.StrongLoss, ModerateLoss},
		{th.StrongLoss + eps, ModerateLoss},
		{th.ModerateLoss - eps, ModerateLoss},
		{th.ModerateLoss, Stable},
		{th.ModerateLoss + eps, Stable},
		{0, Stable},
		{th.ModerateGain - eps, Stable},
		{th.ModerateGain, Stable},
		{th.ModerateGain + eps, ModerateGain},
		{th.StrongGain - eps, ModerateGain},
		{th.StrongGain, ModerateGain},
		{th.StrongGain + eps, StrongGain},
		{-0.20, StrongLoss},
		{math.Inf(-1), StrongLoss},
		{math.Inf(1), StrongGain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.d), "delta %v", tt.d)
	}
}

func TestThresholdsClassifyTotal(t *testing.T) {
	th := DefaultThresholds["nbr"]
	for d := -1.0; d <= 1.0; d += 0.0005 {
		c := th.Classify(d)
		assert.GreaterOrEqual(t, int(c), 1)
		assert.LessOrEqual(t, int(c), 5)
	}
	assert.Equal(t, NoClass, th.Classify(math.NaN()))
}

func TestThresholdsForFallsBackToNDVI(t *testing.T) {
	assert.Equal(t, DefaultThresholds["ndvi"], ThresholdsFor("evi"))
	assert.Equal(t, DefaultThresholds["nbr"], ThresholdsFor("nbr"))
}

func TestStagePrecedes(t *testing.T) {
	assert.True(t, StageValidating.Precedes(StageCompositing))
	assert.True(t, StageAggregating.Precedes(StageDone))
	assert.False(t, StageDone.Precedes(StageIndexing))
	assert.True(t, StageIndexing.Precedes(StageFailed))
	assert.False(t, StageDone.Precedes(StageFailed))
	assert.False(t, StageFailed.Precedes(StageDone))
}

func TestFlattenStatisticsIsSorted(t *testing.T) {
	result := &AnalysisResult{
		Statistics: map[string]map[string]ClassStatistics{
			"b_to_c": {"ndvi": {Classes: []ClassStat{{Class: Stable, Label: "Stable", Percent: 100}}}},
			"a_to_b": {
				"nbr":  {Classes: []ClassStat{{Class: StrongLoss, Label: "Strong Loss"}}},
				"ndvi": {Classes: []ClassStat{{Class: StrongGain, Label: "Strong Gain"}}},
			},
		},
	}
	rows := FlattenStatistics(result)
	assert.Len(t, rows, 3)
	assert.Equal(t, "a_to_b", rows[0].Pair)
	assert.Equal(t, "nbr", rows[0].Index)
	assert.Equal(t, "ndvi", rows[1].Index)
	assert.Equal(t, "b_to_c", rows[2].Pair)
	assert.Equal(t, 100.0, rows[2].Percent)
}

func TestMustDate(t *testing.T) {
	d := MustDate("2021-01-01")
	assert.Equal(t, 2021, d.Year())
	_, err := ParseDate("2021/01/01")
	assert.Error(t, err)
}

func TestGetLabel(t *testing.T) {
	tests := []struct {
		class ChangeClass
		lang  Language
		want  string
	}{
		{StrongLoss, English, "Strong Loss"},
		{StrongLoss, Spanish, "Pérdida Fuerte"},
		{Stable, Spanish, "Estable"},
		{StrongGain, Language("fr"), "Strong Gain"},
		{NoClass, English, "No Data"},
		{NoClass, Spanish, "Sin Datos"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetLabel(tt.class, tt.lang), "class %d lang %s", tt.class, tt.lang)
	}
	assert.Equal(t, "Moderate Gain", GetPlainLabel(ModerateGain))
}

func TestLocalizedLeavesOriginalUntouched(t *testing.T) {
	r := &AnalysisResult{
		ID: "run-1",
		Statistics: map[string]map[string]ClassStatistics{
			"1990s_present": {
				"ndvi": {
					Classes: []ClassStat{
						{Class: StrongLoss, Label: "Strong Loss", PixelCount: 3},
						{Class: Stable, Label: "Stable", PixelCount: 7},
					},
					ValidPixels: 10,
				},
			},
		},
	}

	es := r.Localized(Spanish)
	got := es.Statistics["1990s_present"]["ndvi"]
	assert.Equal(t, "Pérdida Fuerte", got.Classes[0].Label)
	assert.Equal(t, "Estable", got.Classes[1].Label)
	assert.Equal(t, int64(7), got.Classes[1].PixelCount)
	assert.Equal(t, int64(10), got.ValidPixels)
	assert.Equal(t, "run-1", es.ID)

	orig := r.Statistics["1990s_present"]["ndvi"]
	assert.Equal(t, "Strong Loss", orig.Classes[0].Label)
	assert.Equal(t, "Stable", orig.Classes[1].Label)
}
