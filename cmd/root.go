package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/iocache"
	"github.com/huangsam/vegchange/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// profile holds profiling configuration.
var profile = &contract.ProfileConfig{}

// cacheManager is the global persistence manager instance.
var cacheManager contract.CacheManager

// startProfiling starts CPU and memory profiling if enabled.
func startProfiling() error {
	if !profile.Enabled {
		return nil
	}

	cpuFile, err := os.Create(profile.Prefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}

	// Memory profiling will be captured at the end
	_, err = fmt.Fprintf(os.Stderr, "Profiling enabled. CPU profile: %s.cpu.prof, Memory profile: %s.mem.prof\n", profile.Prefix, profile.Prefix)
	return err
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if !profile.Enabled {
		return nil
	}

	pprof.StopCPUProfile()

	memFile, err := os.Create(profile.Prefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}

	_, err = fmt.Fprintf(os.Stderr, "Profiling complete. Use 'go tool pprof %s.cpu.prof' to analyze.\n", profile.Prefix)
	return err
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "vegchange",
	Short: "Detect vegetation change between satellite image periods.",
	Long: `Vegchange composites Landsat and Sentinel-2 imagery per period, computes spectral
indices and classifies the change between a reference period and every other period.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigSearch()

	viper.SetEnvPrefix("VEGCHANGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("periods", strings.Join(contract.DefaultPeriodIDs, ","))
	viper.SetDefault("indices", strings.Join(contract.DefaultIndices, ","))
	viper.SetDefault("scale", contract.DefaultScale)
	viper.SetDefault("cloud-threshold", contract.DefaultCloudThreshold)
	viper.SetDefault("min-images", contract.DefaultMinImages)
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("engine", schema.MemoryEngine)
	viper.SetDefault("max-retries", contract.DefaultMaxRetries)
	viper.SetDefault("overpass-endpoint", contract.DefaultOverpassEndpoint)
	viper.SetDefault("cache-backend", schema.SQLiteBackend)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("ephemeral-backend", schema.MemoryEphemeral)
	viper.SetDefault("ephemeral-ttl", contract.DefaultEphemeralTTL.String())
	viper.SetDefault("analysis-backend", "")
	viper.SetDefault("analysis-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("language", schema.English)
}

// setConfigSearch points viper at --config or the default .vegchange.yaml locations.
func setConfigSearch() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".vegchange")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
}

// readInput merges defaults, file, env and flags into the raw input struct.
func readInput() error {
	profilePrefix := viper.GetString("profile")
	if err := contract.ProcessProfilingConfig(profile, profilePrefix); err != nil {
		return fmt.Errorf("failed to process profiling config: %w", err)
	}
	if profile.Enabled {
		if err := startProfiling(); err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
	}

	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return nil
}

// initStores opens the stores named by cfg and exposes them as the cache manager.
func initStores(ctx context.Context, opts iocache.StoreOptions) error {
	if err := iocache.InitStores(ctx, opts); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	cacheManager = iocache.Manager
	return nil
}

// sharedSetup unmarshals config and runs the full validation, area included.
func sharedSetup(ctx context.Context, _ *cobra.Command, _ []string) error {
	if err := readInput(); err != nil {
		return err
	}
	if err := contract.ProcessAndValidate(cfg, registry.New(), input); err != nil {
		return err
	}
	return initStores(ctx, iocache.OptionsFromConfig(cfg))
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// catalogueSetup validates everything but requires no area. An area given anyway is
// validated too.
func catalogueSetup(ctx context.Context, _ *cobra.Command, _ []string) error {
	if err := readInput(); err != nil {
		return err
	}
	if err := contract.ProcessCatalogue(cfg, registry.New(), input); err != nil {
		return err
	}
	if input.HasArea() {
		if err := contract.ProcessArea(cfg, input); err != nil {
			return err
		}
	}
	return initStores(ctx, iocache.OptionsFromConfig(cfg))
}

// catalogueSetupWrapper wraps catalogueSetup for Cobra's PreRunE.
func catalogueSetupWrapper(cmd *cobra.Command, args []string) error {
	return catalogueSetup(rootCtx, cmd, args)
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	setConfigSearch()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}

// StopProfiling stops profiling if enabled.
func StopProfiling() error {
	return stopProfiling()
}
