package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/engine"
	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunStrongLossScenario(t *testing.T) {
	reg := registry.New()
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.50, "P2": 0.30})
	area := testArea(t)

	result, err := NewOrchestrator(testConfig(), eng, reg, nil).Run(context.Background(), area)
	require.NoError(t, err)

	require.Contains(t, result.Deltas, "P1_to_P2")
	d := result.Deltas["P1_to_P2"]["ndvi"]
	deltas, err := eng.Pixels(d.Image, d.DeltaBand)
	require.NoError(t, err)
	for _, v := range deltas {
		assert.InDelta(t, -0.20, v, 1e-9)
	}

	stats := result.Statistics["P1_to_P2"]["ndvi"]
	assert.InDelta(t, 100.0, stats.Class(schema.StrongLoss).Percent, 1e-9)
	for _, c := range []schema.ChangeClass{schema.ModerateLoss, schema.Stable, schema.ModerateGain, schema.StrongGain} {
		assert.Zero(t, stats.Class(c).Percent, "class %d", c)
	}
	assert.Equal(t, int64(64), stats.ValidPixels)
	assert.InDelta(t, 64*0.09, stats.ValidAreaHa, 1e-9)

	assert.Equal(t, []string{"P1", "P2"}, result.Periods)
	assert.Equal(t, area.Summary(), result.Area)
	assert.Len(t, result.Composites, 2)
	assert.True(t, result.Composites["P2"].HasBand("ndvi"))
}

func TestRunNoChangeIsStable(t *testing.T) {
	reg := registry.New()
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.42, "P2": 0.42})

	result, err := NewOrchestrator(testConfig(), eng, reg, nil).Run(context.Background(), testArea(t))
	require.NoError(t, err)

	stats := result.Statistics["P1_to_P2"]["ndvi"]
	assert.InDelta(t, 100.0, stats.Class(schema.Stable).Percent, 1e-9)
	assert.Equal(t, stats.ValidPixels, stats.Class(schema.Stable).PixelCount)
}

func TestRunEmptyPeriodFails(t *testing.T) {
	reg := registry.New()
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.5})
	tier := newMapTier()
	cfg := testConfig()

	result, err := NewOrchestrator(cfg, eng, reg, &testManager{durable: tier}).Run(context.Background(), testArea(t))
	require.Error(t, err)
	assert.Nil(t, result)

	var empty *contract.EmptyCollectionError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "P2", empty.Period)
	assert.ErrorIs(t, err, contract.ErrEmptyCollection)

	var stage *contract.StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, schema.StageCompositing, stage.Stage)
	assert.Equal(t, "P2", stage.Period)

	compositor := NewCompositor(cfg, eng, reg, tier)
	assert.False(t, tier.has(compositor.compositeKey(testArea(t).Ref(), cfg.Periods[1], cfg.CloudThreshold)))
}

func TestRunValidatesBeforeAnyRemoteCall(t *testing.T) {
	broken := testThresholds
	broken.StrongLoss = 0.5 // above moderate_loss

	tests := []struct {
		name   string
		mutate func(*contract.Config)
	}{
		{"thresholds out of order", func(c *contract.Config) { c.Thresholds = map[string]schema.Thresholds{"ndvi": broken} }},
		{"reference not selected", func(c *contract.Config) { c.Reference = "P9" }},
		{"unknown index", func(c *contract.Config) { c.Indices = []string{"ndvi", "savi"} }},
		{"single period", func(c *contract.Config) { c.Periods = c.Periods[:1] }},
		{"unknown sensor", func(c *contract.Config) {
			c.Periods = append(c.Periods[:1:1], schema.PeriodWindow{ID: "P2", Sensors: []string{"MODIS/061/MOD09GA"}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			eng := &engine.MockEngine{}

			_, err := NewOrchestrator(cfg, eng, registry.New(), nil).Run(context.Background(), testArea(t))
			require.Error(t, err)
			assert.True(t, contract.IsConfiguration(err))

			var stage *contract.StageError
			require.ErrorAs(t, err, &stage)
			assert.Equal(t, schema.StageValidating, stage.Stage)
			assert.Empty(t, eng.Calls)
		})
	}
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	reg := registry.New()
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.5, "P2": 0.3})
	cfg := testConfig()
	cfg.Indices = []string{"ndvi", "nbr"}

	var mu sync.Mutex
	var stages []schema.Stage
	var fractions []float64
	progress := func(stage schema.Stage, fraction float64, _ string) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, stage)
		fractions = append(fractions, fraction)
	}

	_, err := NewOrchestrator(cfg, eng, reg, nil).WithProgress(progress).Run(context.Background(), testArea(t))
	require.NoError(t, err)

	require.NotEmpty(t, stages)
	assert.Equal(t, schema.StageValidating, stages[0])
	assert.Equal(t, schema.StageDone, stages[len(stages)-1])
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	for i := 1; i < len(stages); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
		assert.False(t, stages[i].Precedes(stages[i-1]), "stage went back from %s to %s", stages[i-1], stages[i])
	}
}

func TestRunFailureReportsFailedStage(t *testing.T) {
	reg := registry.New()
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.5})

	var last schema.Stage
	_, err := NewOrchestrator(testConfig(), eng, reg, nil).
		WithProgress(func(stage schema.Stage, _ float64, _ string) { last = stage }).
		Run(context.Background(), testArea(t))
	require.Error(t, err)
	assert.Equal(t, schema.StageFailed, last)
}

func TestRunReusesDurableTier(t *testing.T) {
	reg := registry.New()
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.5, "P2": 0.3})
	mgr := &testManager{durable: newMapTier()}
	cfg := testConfig()

	first, err := NewOrchestrator(cfg, eng, reg, mgr).Run(context.Background(), testArea(t))
	require.NoError(t, err)
	calls := eng.TotalCalls()

	second, err := NewOrchestrator(cfg, eng, reg, mgr).Run(context.Background(), testArea(t))
	require.NoError(t, err)

	assert.Equal(t, calls, eng.TotalCalls(), "second run should be served from the durable tier")
	assert.Equal(t, first.Statistics, second.Statistics)
	assert.Equal(t, first.Composites, second.Composites)
}

func TestRunSequentialPairs(t *testing.T) {
	reg := registry.New()
	l8, err := reg.Sensor(schema.Landsat8)
	require.NoError(t, err)

	periods := append(testPeriods(), schema.PeriodWindow{
		ID: "P3", Start: schema.MustDate("2022-01-01"), End: schema.MustDate("2022-12-31"), Sensors: []string{schema.Landsat8},
	})
	eng := uniformEngine(t, reg, map[string]float64{"P1": 0.6, "P2": 0.5})
	eng.AddScenes(engine.UniformScene(l8, schema.Scene{ID: "P3-a", Date: schema.MustDate("2022-06-01")}, engine.ReflectanceForNDVI(0.5)))

	cfg := testConfig()
	cfg.Catalogue, cfg.Periods = periods, periods
	cfg.Sequential = true

	result, err := NewOrchestrator(cfg, eng, reg, nil).Run(context.Background(), testArea(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"P1_to_P2", "P1_to_P3", "P2_to_P3"}, result.PairKeys())
	assert.InDelta(t, 100.0, result.Statistics["P2_to_P3"]["ndvi"].Class(schema.Stable).Percent, 1e-9)
	assert.InDelta(t, 100.0, result.Statistics["P1_to_P2"]["ndvi"].Class(schema.ModerateLoss).Percent, 1e-9)
}

func TestRunCancelledContext(t *testing.T) {
	reg := registry.New()
	eng := &engine.MockEngine{}
	eng.On("Namespace").Return("mock")
	eng.On("ListScenes", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOrchestrator(testConfig(), eng, reg, nil).Run(ctx, testArea(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPairs(t *testing.T) {
	tests := []struct {
		name       string
		periods    []string
		reference  string
		sequential bool
		want       []string
	}{
		{"reference first", []string{"a", "b", "c"}, "a", false, []string{"a_to_b", "a_to_c"}},
		{"reference last", []string{"a", "b", "c"}, "c", false, []string{"c_to_a", "c_to_b"}},
		{"sequential drops duplicates", []string{"a", "b", "c"}, "a", true, []string{"a_to_b", "a_to_c", "b_to_c"}},
		{"two periods sequential", []string{"a", "b"}, "a", true, []string{"a_to_b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range Pairs(tt.periods, tt.reference, tt.sequential) {
				got = append(got, p.Key())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
