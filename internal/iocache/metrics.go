package iocache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Tier labels.
const (
	tierDurable   = "durable"
	tierEphemeral = "ephemeral"
)

var metricsRegistry = prometheus.NewRegistry()

var (
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vegchange",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by tier and result (hit, miss)",
	}, []string{"tier", "result"})

	cacheBuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vegchange",
		Subsystem: "cache",
		Name:      "builds_total",
		Help:      "Builder invocations by tier and outcome (ok, error)",
	}, []string{"tier", "outcome"})

	cacheBuildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vegchange",
		Subsystem: "cache",
		Name:      "build_duration_seconds",
		Help:      "Time spent in builders on cache misses",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"tier"})

	cacheStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vegchange",
		Subsystem: "cache",
		Name:      "store_errors_total",
		Help:      "Backing store failures that were degraded to a miss or a skipped write",
	}, []string{"tier", "op"})
)

func init() {
	metricsRegistry.MustRegister(
		cacheLookups,
		cacheBuilds,
		cacheBuildSeconds,
		cacheStoreErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// MetricsRegistry returns the registry holding the cache metrics, for serving with promhttp.
func MetricsRegistry() *prometheus.Registry {
	return metricsRegistry
}
