package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huangsam/vegchange/internal/contract"
)

// cacheKey creates a deterministic key from the given parts. Every part must be
// JSON-encodable; maps are encoded with sorted keys so ordering never leaks into the key.
func cacheKey(kind string, parts ...any) string {
	payload, err := json.Marshal(append([]any{kind}, parts...))
	if err != nil {
		// Keys are built from plain values only, so this is a programming error.
		panic(fmt.Sprintf("cache key for %s: %v", kind, err))
	}
	sum := sha256.Sum256(payload)
	return kind + ":" + hex.EncodeToString(sum[:])
}

// rebuiltSuffix marks the key used when the entry under the original key cannot be decoded.
const rebuiltSuffix = ":rebuilt"

// getOrCompute routes build through tier. A nil tier means caching is disabled and build
// runs directly. Errors from build come back unchanged so callers can inspect them.
//
// An entry that cannot be decoded (for example one written by an older layout) is rebuilt
// through the tier under the key with rebuiltSuffix, so the rebuild still runs once per key.
func getOrCompute[T any](ctx context.Context, tier contract.Tier, key string, build func(context.Context) (T, error)) (T, error) {
	if tier == nil {
		return build(ctx)
	}

	result, err := fetch(ctx, tier, key, build)
	var decodeErr *entryDecodeError
	if !errors.As(err, &decodeErr) {
		return result, err
	}
	contract.LogWarn(fmt.Sprintf("Ignoring unreadable cache entry %s", key), decodeErr.err)

	result, err = fetch(ctx, tier, key+rebuiltSuffix, build)
	if errors.As(err, &decodeErr) {
		var zero T
		return zero, fmt.Errorf("cache entry %s: %w", key+rebuiltSuffix, decodeErr.err)
	}
	return result, err
}

// entryDecodeError reports a cached value that does not decode into the requested type.
type entryDecodeError struct {
	err error
}

func (e *entryDecodeError) Error() string { return "unreadable cache entry: " + e.err.Error() }

// fetch runs one tier lookup for key, building on a miss.
func fetch[T any](ctx context.Context, tier contract.Tier, key string, build func(context.Context) (T, error)) (T, error) {
	var built *T
	data, err := tier.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := build(ctx)
		if err != nil {
			return nil, err
		}
		built = &v
		return json.Marshal(v)
	})
	var result T
	if err != nil {
		return result, err
	}
	if built != nil {
		return *built, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		var zero T
		return zero, &entryDecodeError{err: err}
	}
	return result, nil
}

// durableTier returns the durable tier of mgr, or nil when caching is off.
func durableTier(mgr contract.CacheManager) contract.Tier {
	if mgr == nil {
		return nil
	}
	return mgr.GetDurableTier()
}

// ephemeralTier returns the ephemeral tier of mgr, or nil when caching is off.
func ephemeralTier(mgr contract.CacheManager) contract.Tier {
	if mgr == nil {
		return nil
	}
	return mgr.GetEphemeralTier()
}
