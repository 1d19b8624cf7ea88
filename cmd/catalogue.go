package cmd

import (
	"time"

	"github.com/huangsam/vegchange/core"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// periodsCmd lists the period catalogue.
var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List the period windows that can be compared.",
	Long: `List the built-in period windows plus any declared under period-windows in
.vegchange.yaml, with their dates and sensors.

Examples:
  vegchange periods
  vegchange periods --output csv`,
	PreRunE: catalogueSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecutePeriods(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot list periods", err)
		}
	},
}

// indicesCmd lists the registered indices and sensors.
var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "List the spectral indices and sensor schemas.",
	Long: `List every registered spectral index with its formula, and every sensor with its
scaling, QA band and cloud property.

Examples:
  vegchange indices --output json`,
	PreRunE: catalogueSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteIndices(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot list indices", err)
		}
	},
}

// exportStatusCmd waits for an export task.
var exportStatusCmd = &cobra.Command{
	Use:   "export-status <task-id>",
	Short: "Wait for an export task and print its final state.",
	Long: `Poll the compute engine for an export task submitted by 'analyze --export' until it
completes, fails or the timeout elapses.

Examples:
  vegchange export-status 3f2a9c1e --engine remote --engine-url https://engine.example --timeout 5m`,
	Args:    cobra.ExactArgs(1),
	PreRunE: catalogueSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		timeout := cfg.ExportTimeout
		if s := viper.GetString("timeout"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil || d <= 0 {
				return contract.NewConfigurationError("timeout", "'%s' is not a positive duration", s)
			}
			timeout = d
		}
		if err := core.ExecuteExportStatus(rootCtx, cfg, args[0], timeout); err != nil {
			contract.LogFatal("Cannot get export status", err)
		}
		return nil
	},
}
