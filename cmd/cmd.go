// Package cmd defines the command-line interface for vegchange.
package cmd

import (
	"strings"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(periodsCmd)
	rootCmd.AddCommand(indicesCmd)
	rootCmd.AddCommand(exportStatusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(analysisCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the analysis subcommands to the parent analysis command
	analysisCmd.AddCommand(analysisClearCmd)
	analysisCmd.AddCommand(analysisStatusCmd)
	analysisCmd.AddCommand(analysisExportCmd)
	analysisCmd.AddCommand(analysisMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	pf := rootCmd.PersistentFlags()
	pf.String("periods", strings.Join(contract.DefaultPeriodIDs, ","), "Comma-separated period ids to compare")
	pf.String("reference", "", "Reference period (defaults to the first selected period)")
	pf.String("indices", strings.Join(contract.DefaultIndices, ","), "Comma-separated spectral indices")
	pf.Bool("sequential", false, "Compare consecutive periods instead of every period against the reference")
	pf.String("bbox", "", "Area of interest as west,south,east,north in degrees")
	pf.String("geojson", "", "Path to a GeoJSON file with the area of interest")
	pf.Int64("osm-way", 0, "OpenStreetMap way id whose polygon is the area of interest")
	pf.Float64("buffer", 0, "Buffer around the area of interest in metres")
	pf.Float64("scale", contract.DefaultScale, "Pixel size in metres")
	pf.Float64("cloud-threshold", contract.DefaultCloudThreshold, "Maximum scene cloud cover in percent")
	pf.Int("min-images", contract.DefaultMinImages, "Warn when a period has fewer usable scenes")
	pf.Int("workers", contract.DefaultWorkers, "Number of periods composited concurrently")
	pf.String("thresholds-override", "", "Threshold overrides (format: 'ndvi:-0.15,-0.05,0.05,0.15;nbr:...')")
	pf.String("engine", string(schema.MemoryEngine), "Compute engine: memory or remote")
	pf.String("engine-url", "", "Base URL of the remote compute engine")
	pf.String("engine-token", "", "Bearer token for the remote compute engine (prefer VEGCHANGE_ENGINE_TOKEN)")
	pf.String("request-timeout", contract.DefaultRequestTimeout.String(), "Timeout of one engine request")
	pf.String("build-timeout", contract.DefaultBuildTimeout.String(), "Timeout of one period composite")
	pf.Int("max-retries", contract.DefaultMaxRetries, "Retries for transient engine faults")
	pf.String("overpass-endpoint", contract.DefaultOverpassEndpoint, "Overpass API endpoint used for --osm-way")
	pf.Bool("export", false, "Submit classified maps for export after the analysis")
	pf.String("export-destination", contract.DefaultExportDestination, "Export destination folder")
	pf.String("export-timeout", contract.DefaultExportTimeout.String(), "Default timeout when waiting for exports")
	pf.String("export-poll-interval", contract.DefaultExportPollInterval.String(), "Interval between export status polls")
	pf.String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	pf.String("output-file", "", "Optional path to write output to")
	pf.String("chart", "", "Optional path of a class-area bar chart (png, svg or pdf)")
	pf.Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	pf.Int("width", 0, "Terminal width override (0 = auto-detect)")
	pf.String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	pf.String("language", string(schema.English), "Language of change class labels: en or es")
	pf.String("profile", "", "Enable profiling and write profiles to files with this prefix")
	pf.String("cache-backend", string(schema.SQLiteBackend), "Durable cache backend: sqlite or mysql or postgresql or none")
	pf.String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	pf.String("ephemeral-backend", string(schema.MemoryEphemeral), "Ephemeral cache backend: memory or redis or none")
	pf.String("ephemeral-connect", "", "Redis address or redis:// URL for the ephemeral cache")
	pf.String("ephemeral-ttl", contract.DefaultEphemeralTTL.String(), "Lifetime of ephemeral cache entries")
	pf.String("analysis-backend", "", "Analysis tracking backend: sqlite or mysql or postgresql or none")
	pf.String("analysis-db-connect", "", "Database connection string for analysis tracking (must differ from cache-db-connect)")
	pf.String("config", "", "Path to config file")
	if err := viper.BindPFlags(pf); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of previewCmd to Viper
	previewCmd.Flags().String("period", "", "Period whose composite is previewed")
	if err := viper.BindPFlags(previewCmd.Flags()); err != nil {
		contract.LogFatal("Error binding preview flags", err)
	}

	// Bind all flags of exportStatusCmd to Viper
	exportStatusCmd.Flags().String("timeout", "", "How long to wait for the export (defaults to --export-timeout)")
	if err := viper.BindPFlags(exportStatusCmd.Flags()); err != nil {
		contract.LogFatal("Error binding export-status flags", err)
	}

	// Bind all flags of cacheClearCmd to Viper
	cacheClearCmd.Flags().Bool("ephemeral", false, "Also clear the ephemeral cache")
	if err := viper.BindPFlags(cacheClearCmd.Flags()); err != nil {
		contract.LogFatal("Error binding cache clear flags", err)
	}

	// Bind all flags of mcpCmd to Viper
	mcpCmd.Flags().String("metrics-addr", "", "Serve Prometheus cache metrics on this address (e.g. :9090)")
	if err := viper.BindPFlags(mcpCmd.Flags()); err != nil {
		contract.LogFatal("Error binding mcp flags", err)
	}

	// Bind all flags of analysisMigrateCmd to Viper
	analysisMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(analysisMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding analysis migrate flags", err)
	}
}
