package iocache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func countingBuilder(calls *atomic.Int32, value string) contract.Builder {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(value), nil
	}
}

func TestDurableTierGetOrCompute(t *testing.T) {
	ctx := context.Background()
	tier := NewDurableTier(newSQLiteCacheStore(t))
	hits := testutil.ToFloat64(cacheLookups.WithLabelValues(tierDurable, "hit"))
	misses := testutil.ToFloat64(cacheLookups.WithLabelValues(tierDurable, "miss"))

	var calls atomic.Int32
	got, err := tier.GetOrCompute(ctx, "composite:a", countingBuilder(&calls, "ref-a"))
	require.NoError(t, err)
	assert.Equal(t, "ref-a", string(got))

	got, err = tier.GetOrCompute(ctx, "composite:a", countingBuilder(&calls, "other"))
	require.NoError(t, err)
	assert.Equal(t, "ref-a", string(got), "second call is served from the store")
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues(tierDurable, "hit")))
	assert.Equal(t, misses+1, testutil.ToFloat64(cacheLookups.WithLabelValues(tierDurable, "miss")))
}

func TestDurableTierBuildError(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteCacheStore(t)
	tier := NewDurableTier(store)
	buildErr := errors.New("remote compute failed")

	_, err := tier.GetOrCompute(ctx, "composite:b", func(context.Context) ([]byte, error) {
		return nil, buildErr
	})
	assert.Same(t, buildErr, err, "builder errors come back unchanged")

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalEntries, "failed builds store nothing")
}

func TestDurableTierVersionMismatch(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteCacheStore(t)
	require.NoError(t, store.Set("composite:c", []byte("old layout"), durableVersion+1, 1))

	var calls atomic.Int32
	got, err := NewDurableTier(store).GetOrCompute(ctx, "composite:c", countingBuilder(&calls, "rebuilt"))
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", string(got))
	assert.Equal(t, int32(1), calls.Load())

	_, version, _, err := store.Get("composite:c")
	require.NoError(t, err)
	assert.Equal(t, durableVersion, version)
}

func TestDurableTierSingleBuildPerKey(t *testing.T) {
	ctx := context.Background()
	tier := NewDurableTier(newSQLiteCacheStore(t))

	var calls atomic.Int32
	release := make(chan struct{})
	build := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("ref"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := tier.GetOrCompute(ctx, "composite:same", build)
			assert.NoError(t, err)
			results[i] = string(got)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "ref", r)
	}
}

func TestDurableTierDifferentKeysRunConcurrently(t *testing.T) {
	ctx := context.Background()
	tier := NewDurableTier(newSQLiteCacheStore(t))

	var inFlight atomic.Int32
	bothStarted := make(chan struct{})
	build := func(context.Context) ([]byte, error) {
		if inFlight.Add(1) == 2 {
			close(bothStarted)
		}
		select {
		case <-bothStarted:
			return []byte("ok"), nil
		case <-time.After(time.Second):
			return nil, errors.New("builds were serialized")
		}
	}

	var wg sync.WaitGroup
	for _, key := range []string{"composite:x", "composite:y"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tier.GetOrCompute(ctx, key, build)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestDurableTierWaiterContext(t *testing.T) {
	tier := NewDurableTier(newSQLiteCacheStore(t))
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = tier.GetOrCompute(context.Background(), "composite:slow", func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("ref"), nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tier.GetOrCompute(ctx, "composite:slow", func(context.Context) ([]byte, error) {
		t.Error("waiter must not start a second build")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

// sleepOrCancel returns value after d unless the build context ends first.
func sleepOrCancel(d time.Duration, value string) contract.Builder {
	return func(ctx context.Context) ([]byte, error) {
		select {
		case <-time.After(d):
			return []byte(value), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestDurableTierStarterCancelDoesNotFailWaiters(t *testing.T) {
	store := newSQLiteCacheStore(t)
	tier := NewDurableTier(store)

	starterCtx, cancelStarter := context.WithCancel(context.Background())
	defer cancelStarter()
	started := make(chan struct{})
	build := sleepOrCancel(200*time.Millisecond, "ref")

	starterErr := make(chan error, 1)
	go func() {
		_, err := tier.GetOrCompute(starterCtx, "composite:shared", func(ctx context.Context) ([]byte, error) {
			close(started)
			return build(ctx)
		})
		starterErr <- err
	}()
	<-started

	waiterGot := make(chan []byte, 1)
	waiterErr := make(chan error, 1)
	go func() {
		got, err := tier.GetOrCompute(context.Background(), "composite:shared", func(context.Context) ([]byte, error) {
			t.Error("waiter must join the running build")
			return nil, nil
		})
		waiterGot <- got
		waiterErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelStarter()
	assert.ErrorIs(t, <-starterErr, context.Canceled, "the starter still sees its own cancellation")

	require.NoError(t, <-waiterErr)
	assert.Equal(t, "ref", string(<-waiterGot))

	value, _, _, err := store.Get("composite:shared")
	require.NoError(t, err, "the build populates the tier after the starter left")
	assert.Equal(t, "ref", string(value))
}

func TestDurableTierBuildTimeout(t *testing.T) {
	store := newSQLiteCacheStore(t)
	tier := NewDurableTier(store).WithBuildTimeout(20 * time.Millisecond)

	_, err := tier.GetOrCompute(context.Background(), "composite:stuck", sleepOrCancel(time.Second, "ref"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalEntries)
}

func TestEphemeralTierStarterCancelDoesNotFailWaiters(t *testing.T) {
	tier := NewEphemeralTier(NewMemoryEphemeralStore(time.Hour), time.Hour)

	starterCtx, cancelStarter := context.WithCancel(context.Background())
	defer cancelStarter()
	started := make(chan struct{})
	build := sleepOrCancel(200*time.Millisecond, "https://tiles.example/q")

	go func() {
		_, _ = tier.GetOrCompute(starterCtx, "quicklook:shared", func(ctx context.Context) ([]byte, error) {
			close(started)
			return build(ctx)
		})
	}()
	<-started

	done := make(chan struct{})
	var got []byte
	var err error
	go func() {
		defer close(done)
		got, err = tier.GetOrCompute(context.Background(), "quicklook:shared", func(context.Context) ([]byte, error) {
			t.Error("waiter must join the running build")
			return nil, nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancelStarter()
	<-done
	require.NoError(t, err)
	assert.Equal(t, "https://tiles.example/q", string(got))
}

func TestDurableTierStoreFailuresDegrade(t *testing.T) {
	store := &MockCacheStore{}
	store.On("Get", "composite:d").Return(nil, 0, int64(0), errors.New("disk I/O error"))
	store.On("Set", "composite:d", []byte("ref"), durableVersion, mock.AnythingOfType("int64")).Return(errors.New("read-only"))

	getErrs := testutil.ToFloat64(cacheStoreErrors.WithLabelValues(tierDurable, "get"))
	setErrs := testutil.ToFloat64(cacheStoreErrors.WithLabelValues(tierDurable, "set"))

	var calls atomic.Int32
	got, err := NewDurableTier(store).GetOrCompute(context.Background(), "composite:d", countingBuilder(&calls, "ref"))
	require.NoError(t, err)
	assert.Equal(t, "ref", string(got))
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, getErrs+2, testutil.ToFloat64(cacheStoreErrors.WithLabelValues(tierDurable, "get")))
	assert.Equal(t, setErrs+1, testutil.ToFloat64(cacheStoreErrors.WithLabelValues(tierDurable, "set")))
	store.AssertExpectations(t)
}

func TestEphemeralTierTTL(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return clock }

	store := NewMemoryEphemeralStore(0)
	tier := NewEphemeralTier(store, 24*time.Hour)
	tier.now = now

	var calls atomic.Int32
	got, err := tier.GetOrCompute(ctx, "quicklook:a", countingBuilder(&calls, "https://tiles/1"))
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/1", string(got))

	clock = clock.Add(23 * time.Hour)
	got, err = tier.GetOrCompute(ctx, "quicklook:a", countingBuilder(&calls, "https://tiles/2"))
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/1", string(got))
	assert.Equal(t, int32(1), calls.Load())

	clock = clock.Add(time.Hour)
	got, err = tier.GetOrCompute(ctx, "quicklook:a", countingBuilder(&calls, "https://tiles/2"))
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/2", string(got), "stale entries are rebuilt")
	assert.Equal(t, int32(2), calls.Load())
}

func TestEphemeralTierBuildError(t *testing.T) {
	store := NewMemoryEphemeralStore(time.Hour)
	buildErr := errors.New("quicklook failed")

	_, err := NewEphemeralTier(store, time.Hour).GetOrCompute(context.Background(), "quicklook:b",
		func(context.Context) ([]byte, error) { return nil, buildErr })
	assert.Same(t, buildErr, err)

	_, _, err = store.Get(context.Background(), "quicklook:b")
	assert.ErrorIs(t, err, contract.ErrCacheMiss)
}

func TestMetricsRegistryGathers(t *testing.T) {
	cacheLookups.WithLabelValues(tierEphemeral, "miss").Add(0)
	families, err := MetricsRegistry().Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "vegchange_cache_lookups_total")
}
