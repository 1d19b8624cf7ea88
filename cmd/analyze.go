package cmd

import (
	"fmt"

	"github.com/huangsam/vegchange/core"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// analyzeCmd runs the full change detection pipeline.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify vegetation change for an area across periods.",
	Long: `Composite every selected period, compute the spectral indices and classify the
change between the reference period and each comparison period.

Each (period pair, index) gets per-class pixel counts, hectares and percentages of the
valid area. Composites are cached in the durable cache, so repeated runs over the same
area and periods skip the expensive reductions.

Exactly one area source is required: --bbox, --geojson or --osm-way.

Examples:
  # NDVI and NBR change for a bounding box, 1990s vs every later period
  vegchange analyze --bbox -70.65,-33.50,-70.55,-33.40

  # Compare consecutive periods of an OpenStreetMap park with a 200 m buffer
  vegchange analyze --osm-way 123456 --buffer 200 --sequential

  # Export statistics to CSV and draw a chart
  vegchange analyze --geojson park.geojson --output csv --output-file stats.csv --chart stats.png

  # Run against a remote engine and submit the classified maps for export
  VEGCHANGE_ENGINE_TOKEN=... vegchange analyze --engine remote --engine-url https://engine.example --bbox ... --export`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteAnalysis(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run change analysis", err)
		}
	},
}

// demoCmd runs the analysis on synthetic scenes.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the analysis on synthetic scenes with the in-memory engine.",
	Long: `Run the whole pipeline offline against deterministic synthetic scenes.

The demo always uses the in-memory engine and never exports. Without an area flag it
analyses a small built-in bounding box.

Examples:
  vegchange demo
  vegchange demo --periods 2010s,present --indices ndvi --output json`,
	PreRunE: catalogueSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteDemo(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run demo", err)
		}
	},
}

// previewCmd prints a quick-look URL for one period.
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print a quick-look URL of one period composite.",
	Long: `Build (or fetch from cache) the composite of one period and print a map tile URL.

Tile URLs are kept in the ephemeral cache for --ephemeral-ttl.

Examples:
  vegchange preview --period present --bbox -70.65,-33.50,-70.55,-33.40`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		period := viper.GetString("period")
		if period == "" {
			return fmt.Errorf("--period is required")
		}
		if err := core.ExecutePreview(rootCtx, cfg, cacheManager, period); err != nil {
			contract.LogFatal("Cannot build preview", err)
		}
		return nil
	},
}
