package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/aoi"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/engine"
	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/require"
)

// mapTier is an in-memory tier that counts builds per key.
type mapTier struct {
	mu      sync.Mutex
	entries map[string][]byte
	builds  map[string]int
}

func newMapTier() *mapTier {
	return &mapTier{entries: make(map[string][]byte), builds: make(map[string]int)}
}

func (m *mapTier) GetOrCompute(ctx context.Context, key string, build contract.Builder) ([]byte, error) {
	m.mu.Lock()
	if v, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	m.builds[key]++
	m.mu.Unlock()

	v, err := build(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.entries[key] = v
	m.mu.Unlock()
	return v, nil
}

func (m *mapTier) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func (m *mapTier) totalBuilds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.builds {
		total += n
	}
	return total
}

// testManager exposes fixed tiers and no stores.
type testManager struct {
	durable   contract.Tier
	ephemeral contract.Tier
}

func (m *testManager) GetDurableTier() contract.Tier              { return m.durable }
func (m *testManager) GetEphemeralTier() contract.Tier            { return m.ephemeral }
func (m *testManager) GetCacheStore() contract.CacheStore         { return nil }
func (m *testManager) GetEphemeralStore() contract.EphemeralStore { return nil }
func (m *testManager) GetAnalysisStore() contract.AnalysisStore   { return nil }

var testThresholds = schema.Thresholds{
	StrongLoss: -0.15, ModerateLoss: -0.05, StableMin: -0.05,
	StableMax: 0.05, ModerateGain: 0.05, StrongGain: 0.15,
}

func testPeriods() []schema.PeriodWindow {
	return []schema.PeriodWindow{
		{ID: "P1", Start: schema.MustDate("2014-01-01"), End: schema.MustDate("2014-12-31"), Sensors: []string{schema.Landsat8}},
		{ID: "P2", Start: schema.MustDate("2019-01-01"), End: schema.MustDate("2019-12-31"), Sensors: []string{schema.Landsat8}},
	}
}

func testConfig() *contract.Config {
	periods := testPeriods()
	return &contract.Config{
		Catalogue:          periods,
		Periods:            periods,
		Reference:          "P1",
		Indices:            []string{"ndvi"},
		Thresholds:         map[string]schema.Thresholds{"ndvi": testThresholds},
		Scale:              30,
		CloudThreshold:     20,
		MinImages:          1,
		Workers:            2,
		BuildTimeout:       time.Minute,
		ExportDestination:  "drive",
		ExportPollInterval: time.Millisecond,
		ExportTimeout:      time.Second,
	}
}

func testArea(t *testing.T) *aoi.Area {
	t.Helper()
	area, err := aoi.FromBBox([4]float64{-70.5, -33.5, -70.4, -33.4}, 0)
	require.NoError(t, err)
	return area
}

// uniformEngine seeds three clear Landsat 8 scenes per period, each with the given NDVI.
func uniformEngine(t *testing.T, reg *registry.Registry, ndviByPeriod map[string]float64) *engine.MemoryEngine {
	t.Helper()
	l8, err := reg.Sensor(schema.Landsat8)
	require.NoError(t, err)

	m := engine.NewMemoryEngine().WithGridSize(8)
	for _, p := range testPeriods() {
		ndvi, ok := ndviByPeriod[p.ID]
		if !ok {
			continue
		}
		for k := range 3 {
			m.AddScenes(engine.UniformScene(l8, schema.Scene{
				ID:         p.ID + "-" + string(rune('a'+k)),
				Date:       p.Start.AddDate(0, 2*k+1, 0),
				CloudCover: 5,
			}, engine.ReflectanceForNDVI(ndvi)))
		}
	}
	return m
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
