// Package iocache is for caching I/O calls.
package iocache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// StoreOptions selects the backends behind each store. Empty backends leave that store off.
type StoreOptions struct {
	CacheBackend     schema.DatabaseBackend
	CacheConnect     string
	EphemeralBackend schema.EphemeralBackend
	EphemeralConnect string
	EphemeralTTL     time.Duration
	AnalysisBackend  schema.DatabaseBackend
	AnalysisConnect  string
	BuildTimeout     time.Duration
}

// OptionsFromConfig reads the store settings out of cfg.
func OptionsFromConfig(cfg *contract.Config) StoreOptions {
	return StoreOptions{
		CacheBackend:     cfg.CacheBackend,
		CacheConnect:     cfg.CacheDBConnect,
		EphemeralBackend: cfg.EphemeralBackend,
		EphemeralConnect: cfg.EphemeralConnect,
		EphemeralTTL:     cfg.EphemeralTTL,
		AnalysisBackend:  cfg.AnalysisBackend,
		AnalysisConnect:  cfg.AnalysisDBConnect,
		BuildTimeout:     cfg.BuildTimeout,
	}
}

// CacheStoreManager manages the stores and the tiers layered on top of them.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	durable      contract.CacheStore
	ephemeral    contract.EphemeralStore
	analysis     contract.AnalysisStore

	durableTier   *DurableTier
	ephemeralTier *EphemeralTier
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// NewManager opens every store named by opts. On failure, stores opened so far are closed.
func NewManager(ctx context.Context, opts StoreOptions) (*CacheStoreManager, error) {
	mgr := &CacheStoreManager{}
	if err := mgr.open(ctx, opts); err != nil {
		mgr.Close()
		return nil, err
	}
	return mgr, nil
}

func (mgr *CacheStoreManager) open(ctx context.Context, opts StoreOptions) error {
	mgr.Lock()
	defer mgr.Unlock()

	if opts.CacheBackend != "" && opts.CacheBackend != schema.NoneBackend {
		store, err := NewCacheStore(durableTable, opts.CacheBackend, opts.CacheConnect)
		if err != nil {
			return fmt.Errorf("failed to initialize durable cache: %w", err)
		}
		mgr.durable = store
		mgr.durableTier = NewDurableTier(store).WithBuildTimeout(opts.BuildTimeout)
	}

	switch opts.EphemeralBackend {
	case "", schema.NoneEphemeral:
	case schema.MemoryEphemeral:
		mgr.ephemeral = NewMemoryEphemeralStore(opts.EphemeralTTL)
	case schema.RedisEphemeral:
		store, err := NewRedisEphemeralStore(ctx, opts.EphemeralConnect, opts.EphemeralTTL)
		if err != nil {
			return fmt.Errorf("failed to initialize ephemeral cache: %w", err)
		}
		mgr.ephemeral = store
	default:
		return fmt.Errorf("unsupported ephemeral backend: %s", opts.EphemeralBackend)
	}
	if mgr.ephemeral != nil {
		mgr.ephemeralTier = NewEphemeralTier(mgr.ephemeral, opts.EphemeralTTL).WithBuildTimeout(opts.BuildTimeout)
	}

	if opts.AnalysisBackend != "" && opts.AnalysisBackend != schema.NoneBackend {
		store, err := NewAnalysisStore(opts.AnalysisBackend, opts.AnalysisConnect)
		if err != nil {
			return fmt.Errorf("failed to initialize analysis store: %w", err)
		}
		mgr.analysis = store
	}
	return nil
}

// Close closes every open store.
func (mgr *CacheStoreManager) Close() {
	mgr.Lock()
	defer mgr.Unlock()
	if mgr.durable != nil {
		_ = mgr.durable.Close()
	}
	if mgr.ephemeral != nil {
		_ = mgr.ephemeral.Close()
	}
	if mgr.analysis != nil {
		_ = mgr.analysis.Close()
	}
}

// The getters below return an untyped nil when a store is off so callers can compare
// against nil.

// GetDurableTier returns the durable tier.
func (mgr *CacheStoreManager) GetDurableTier() contract.Tier {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.durableTier == nil {
		return nil
	}
	return mgr.durableTier
}

// GetEphemeralTier returns the ephemeral tier.
func (mgr *CacheStoreManager) GetEphemeralTier() contract.Tier {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.ephemeralTier == nil {
		return nil
	}
	return mgr.ephemeralTier
}

// GetCacheStore returns the durable CacheStore.
func (mgr *CacheStoreManager) GetCacheStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.durable
}

// GetEphemeralStore returns the ephemeral store.
func (mgr *CacheStoreManager) GetEphemeralStore() contract.EphemeralStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.ephemeral
}

// GetAnalysisStore returns the analysis AnalysisStore.
func (mgr *CacheStoreManager) GetAnalysisStore() contract.AnalysisStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.analysis
}
