package iocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"golang.org/x/sync/singleflight"
)

// durableVersion is bumped whenever the layout of stored artifacts changes.
// Entries written under another version are treated as misses.
const durableVersion = 1

// buildOnce runs fn for key at most once at a time. The build runs on a context detached
// from the caller that started it, bounded by timeout when positive, so one caller leaving
// never fails the others joined to the same key. Waiters may leave early when their own
// context ends; the build keeps going and still populates the tier.
func buildOnce(ctx context.Context, group *singleflight.Group, key string, timeout time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := group.DoChan(key, func() (any, error) {
		buildCtx, cancel := detach(ctx, timeout)
		defer cancel()
		return fn(buildCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// detach keeps the values of ctx but not its cancellation or deadline.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout > 0 {
		return context.WithTimeout(detached, timeout)
	}
	return context.WithCancel(detached)
}

// timedBuild invokes build and records its outcome.
func timedBuild(ctx context.Context, tier string, build contract.Builder) ([]byte, error) {
	start := time.Now()
	data, err := build(ctx)
	cacheBuildSeconds.WithLabelValues(tier).Observe(time.Since(start).Seconds())
	if err != nil {
		cacheBuilds.WithLabelValues(tier, "error").Inc()
		return nil, err
	}
	cacheBuilds.WithLabelValues(tier, "ok").Inc()
	return data, nil
}

// DurableTier caches artifacts in a CacheStore without expiry.
type DurableTier struct {
	store        contract.CacheStore
	version      int
	buildTimeout time.Duration
	group        singleflight.Group
	now          func() time.Time
}

var _ contract.Tier = &DurableTier{} // Compile-time check

// NewDurableTier wraps store.
func NewDurableTier(store contract.CacheStore) *DurableTier {
	return &DurableTier{store: store, version: durableVersion, now: time.Now}
}

// WithBuildTimeout bounds every shared build. Zero leaves builds unbounded.
func (t *DurableTier) WithBuildTimeout(d time.Duration) *DurableTier {
	t.buildTimeout = d
	return t
}

func (t *DurableTier) lookup(key string) ([]byte, bool) {
	value, version, _, err := t.store.Get(key)
	switch {
	case err == nil:
		return value, version == t.version
	case errors.Is(err, sql.ErrNoRows):
		return nil, false
	default:
		cacheStoreErrors.WithLabelValues(tierDurable, "get").Inc()
		contract.LogWarn(fmt.Sprintf("Durable cache lookup failed for %s", key), err)
		return nil, false
	}
}

// GetOrCompute implements the Tier interface.
func (t *DurableTier) GetOrCompute(ctx context.Context, key string, build contract.Builder) ([]byte, error) {
	if value, ok := t.lookup(key); ok {
		cacheLookups.WithLabelValues(tierDurable, "hit").Inc()
		return value, nil
	}
	cacheLookups.WithLabelValues(tierDurable, "miss").Inc()

	return buildOnce(ctx, &t.group, key, t.buildTimeout, func(ctx context.Context) ([]byte, error) {
		// A build for key may have finished between the lookup and here.
		if value, ok := t.lookup(key); ok {
			return value, nil
		}
		data, err := timedBuild(ctx, tierDurable, build)
		if err != nil {
			return nil, err
		}
		if err := t.store.Set(key, data, t.version, t.now().Unix()); err != nil {
			cacheStoreErrors.WithLabelValues(tierDurable, "set").Inc()
			contract.LogWarn(fmt.Sprintf("Durable cache write failed for %s", key), err)
		}
		return data, nil
	})
}

// EphemeralTier caches presentation values in an EphemeralStore. Entries older than
// the TTL are misses even when the store still holds them.
type EphemeralTier struct {
	store        contract.EphemeralStore
	ttl          time.Duration
	buildTimeout time.Duration
	group        singleflight.Group
	now          func() time.Time
}

var _ contract.Tier = &EphemeralTier{} // Compile-time check

// NewEphemeralTier wraps store. A non-positive ttl never expires entries.
func NewEphemeralTier(store contract.EphemeralStore, ttl time.Duration) *EphemeralTier {
	return &EphemeralTier{store: store, ttl: ttl, now: time.Now}
}

// WithBuildTimeout bounds every shared build. Zero leaves builds unbounded.
func (t *EphemeralTier) WithBuildTimeout(d time.Duration) *EphemeralTier {
	t.buildTimeout = d
	return t
}

func (t *EphemeralTier) fresh(ts int64) bool {
	return t.ttl <= 0 || t.now().Unix()-ts < int64(t.ttl/time.Second)
}

func (t *EphemeralTier) lookup(ctx context.Context, key string) ([]byte, bool) {
	value, ts, err := t.store.Get(ctx, key)
	switch {
	case err == nil:
		return value, t.fresh(ts)
	case errors.Is(err, contract.ErrCacheMiss):
		return nil, false
	default:
		cacheStoreErrors.WithLabelValues(tierEphemeral, "get").Inc()
		contract.LogWarn(fmt.Sprintf("Ephemeral cache lookup failed for %s", key), err)
		return nil, false
	}
}

// GetOrCompute implements the Tier interface.
func (t *EphemeralTier) GetOrCompute(ctx context.Context, key string, build contract.Builder) ([]byte, error) {
	if value, ok := t.lookup(ctx, key); ok {
		cacheLookups.WithLabelValues(tierEphemeral, "hit").Inc()
		return value, nil
	}
	cacheLookups.WithLabelValues(tierEphemeral, "miss").Inc()

	return buildOnce(ctx, &t.group, key, t.buildTimeout, func(ctx context.Context) ([]byte, error) {
		if value, ok := t.lookup(ctx, key); ok {
			return value, nil
		}
		data, err := timedBuild(ctx, tierEphemeral, build)
		if err != nil {
			return nil, err
		}
		if err := t.store.Set(ctx, key, data, t.now().Unix()); err != nil {
			cacheStoreErrors.WithLabelValues(tierEphemeral, "set").Inc()
			contract.LogWarn(fmt.Sprintf("Ephemeral cache write failed for %s", key), err)
		}
		return data, nil
	})
}
