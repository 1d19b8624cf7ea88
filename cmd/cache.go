package cmd

import (
	"fmt"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/iocache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storageSetup loads only the storage settings. Cache and analysis commands use it so
// that no area or period selection is needed.
func storageSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := contract.ProcessStorageOnly(cfg, input); err != nil {
		return err
	}
	cfg.OutputFile = input.OutputFile
	return nil
}

// sqlitePath returns the SQLite file a store uses: the connection string when set.
func sqlitePath(connStr, defaultPath string) string {
	if connStr != "" {
		return connStr
	}
	return defaultPath
}

// cacheSetup loads minimal configuration needed for cache operations.
func cacheSetup() error {
	if err := storageSetup(); err != nil {
		return err
	}

	// Initialize caching with the loaded config (no analysis tracking for cache commands)
	opts := iocache.OptionsFromConfig(cfg)
	opts.AnalysisBackend = ""
	if err := iocache.InitStores(rootCtx, opts); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// cacheCmd focused on cache management.
//
// Note: Cache subcommands use minimal initialization (cacheSetup) instead of the full
// sharedSetup used by analysis commands. No area or periods are validated.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the composite and tile caches (improves performance)",
	Long: `Manage the caches that speed up repeated analyses.

The durable cache keeps period composites and class statistics keyed by area, period,
sensors and parameters. The ephemeral cache keeps short-lived preview tile URLs.

Durable backends: SQLite (default), MySQL, PostgreSQL, or None
Ephemeral backends: memory (default), Redis, or None

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached data

Examples:
  # Check cache status
  vegchange cache status

  # Clear both caches, with Redis as the ephemeral backend
  VEGCHANGE_EPHEMERAL_BACKEND=redis VEGCHANGE_EPHEMERAL_CONNECT=localhost:6379 vegchange cache clear --ephemeral`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached composites and statistics",
	Long: `Delete all durable cache entries from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the cache table
With --ephemeral: Also deletes every ephemeral entry (Redis keys under vegchange:ephemeral:)

Examples:
  # Clear SQLite cache (default)
  vegchange cache clear

  # Clear MySQL cache (set connection string via env variable)
  VEGCHANGE_CACHE_BACKEND=mysql VEGCHANGE_CACHE_DB_CONNECT="..." vegchange cache clear`,
	PreRunE: func(_ *cobra.Command, _ []string) error { return storageSetup() },
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearCache(cfg.CacheBackend, sqlitePath(cfg.CacheDBConnect, contract.GetCacheDBFilePath()), cfg.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")

		if viper.GetBool("ephemeral") {
			if err := iocache.ClearEphemeral(rootCtx, cfg.EphemeralBackend, cfg.EphemeralConnect); err != nil {
				contract.LogFatal("Failed to clear ephemeral cache", err)
			}
			fmt.Println("Ephemeral cache cleared successfully.")
		}
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show detailed information about the durable and ephemeral caches.

Displays:
- Backend type and connection status
- Total number of cached entries
- Last and oldest cache entry timestamps
- Cache database size
- Live ephemeral entries and their TTL

Examples:
  # Check cache status
  vegchange cache status`,
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if store := iocache.Manager.GetCacheStore(); store != nil {
			status, err := store.GetStatus()
			if err != nil {
				contract.LogFatal("Failed to get cache status", err)
			}
			iocache.PrintCacheStatus(status)
		} else {
			fmt.Println("Durable cache is disabled.")
		}

		if store := iocache.Manager.GetEphemeralStore(); store != nil {
			status, err := store.GetStatus(rootCtx)
			if err != nil {
				contract.LogFatal("Failed to get ephemeral cache status", err)
			}
			iocache.PrintEphemeralStatus(status)
		} else {
			fmt.Println("Ephemeral cache is disabled.")
		}
	},
}
