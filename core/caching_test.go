package core

import (
	"context"
	"errors"
	"testing"

	"github.com/huangsam/vegchange/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	a := cacheKey("composite", "ns", "fp", []string{"x", "y"}, 20.0)
	assert.Equal(t, a, cacheKey("composite", "ns", "fp", []string{"x", "y"}, 20.0))
	assert.NotEqual(t, a, cacheKey("composite", "ns", "fp", []string{"y", "x"}, 20.0))
	assert.NotEqual(t, a, cacheKey("composite", "ns", "fp", []string{"x", "y"}, 25.0))
	assert.NotEqual(t, a, cacheKey("delta", "ns", "fp", []string{"x", "y"}, 20.0))
	assert.Contains(t, a, "composite:")

	m1 := cacheKey("delta", map[string]float64{"a": 1, "b": 2})
	m2 := cacheKey("delta", map[string]float64{"b": 2, "a": 1})
	assert.Equal(t, m1, m2)
}

func TestGetOrComputeWithoutTier(t *testing.T) {
	calls := 0
	build := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}
	for range 2 {
		v, err := getOrCompute(context.Background(), nil, "k", build)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeBuildsOnce(t *testing.T) {
	tier := newMapTier()
	calls := 0
	build := func(context.Context) (schema.Composite, error) {
		calls++
		return schema.Composite{Period: "P1", Image: "img-1", Bands: []string{"red"}}, nil
	}

	first, err := getOrCompute(context.Background(), tier, "k", build)
	require.NoError(t, err)
	second, err := getOrCompute(context.Background(), tier, "k", build)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGetOrComputeFailureLeavesNoEntry(t *testing.T) {
	tier := newMapTier()
	boom := errors.New("boom")
	calls := 0

	_, err := getOrCompute(context.Background(), tier, "k", func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	assert.Same(t, boom, err)
	assert.False(t, tier.has("k"))

	v, err := getOrCompute(context.Background(), tier, "k", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeRebuildsUnreadableEntry(t *testing.T) {
	tier := newMapTier()
	tier.entries["k"] = []byte("not json")
	calls := 0
	build := func(context.Context) (schema.Histogram, error) {
		calls++
		return schema.Histogram{3: 10}, nil
	}

	for range 2 {
		v, err := getOrCompute(context.Background(), tier, "k", build)
		require.NoError(t, err)
		assert.Equal(t, schema.Histogram{3: 10}, v)
	}

	assert.Equal(t, 1, calls, "the rebuilt entry serves the second call")
	assert.True(t, tier.has("k"+rebuiltSuffix))
	assert.Equal(t, 1, tier.builds["k"+rebuiltSuffix])
}

func TestGetOrComputeUnreadableRebuiltEntry(t *testing.T) {
	tier := newMapTier()
	tier.entries["k"] = []byte("not json")
	tier.entries["k"+rebuiltSuffix] = []byte("still not json")

	_, err := getOrCompute(context.Background(), tier, "k", func(context.Context) (schema.Histogram, error) {
		t.Fatal("builder must not run when both entries exist")
		return nil, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "k"+rebuiltSuffix)
}

func TestGetOrComputeDecodesStoredValue(t *testing.T) {
	tier := newMapTier()
	tier.entries["k"] = mustJSON(t, schema.Histogram{1: 5, 2: 6})

	v, err := getOrCompute(context.Background(), tier, "k", func(context.Context) (schema.Histogram, error) {
		t.Fatal("builder must not run on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, schema.Histogram{1: 5, 2: 6}, v)
}
