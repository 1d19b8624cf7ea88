package cmd

import (
	"errors"
	"net/http"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/iocache"
	"github.com/huangsam/vegchange/internal/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the vegchange MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents run change analyses through
standard tools. Every request carries its own area; the flags and config file give the
defaults for periods, indices, thresholds, engine and storage.

With --metrics-addr, cache metrics are served in Prometheus format on /metrics.`,
	PreRunE: catalogueSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if addr := viper.GetString("metrics-addr"); addr != "" {
			srv := serveMetrics(addr)
			defer func() { _ = srv.Close() }()
		}
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}

// serveMetrics exposes the cache metrics registry over HTTP in the background.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(iocache.MetricsRegistry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			contract.LogWarn("Metrics server stopped", err)
		}
	}()
	return srv
}
