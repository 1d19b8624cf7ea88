// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/vegchange/internal/expr"
	"github.com/huangsam/vegchange/schema"
)

// ComputeEngine is the remote geospatial compute service. Pixel work happens behind it;
// callers only build requests and handle the returned image references.
type ComputeEngine interface {
	// Namespace distinguishes engines whose image references are not interchangeable.
	// It is mixed into every cache key.
	Namespace() string

	// ListScenes enumerates scenes of one sensor intersecting the area within the date window,
	// with per-scene cloud metadata.
	ListScenes(ctx context.Context, q SceneQuery) ([]schema.Scene, error)

	// Reduce masks and harmonizes every scene of every source, pools them, and reduces the pool
	// with a per-band median over valid observations.
	Reduce(ctx context.Context, req ReduceRequest) (schema.ImageRef, error)

	// Evaluate computes band-algebra expressions over one or more aliased images.
	Evaluate(ctx context.Context, req EvaluateRequest) (schema.ImageRef, error)

	// Histogram counts integer band values inside the area. No-data is not counted.
	Histogram(ctx context.Context, req HistogramRequest) (schema.Histogram, error)

	// QuickLook returns a URL rendering the image for display.
	QuickLook(ctx context.Context, img schema.ImageRef, vis schema.VisParams) (string, error)

	// Export submits an asynchronous export and returns its handle immediately.
	Export(ctx context.Context, req ExportRequest) (schema.ExportHandle, error)

	// ExportStatus reports the current state of an export task.
	ExportStatus(ctx context.Context, handle schema.ExportHandle) (schema.ExportStatus, error)
}

// SceneQuery filters scenes for one sensor.
type SceneQuery struct {
	Sensor        string         `json:"sensor"`
	Area          schema.AreaRef `json:"area"`
	Start         time.Time      `json:"start"`
	End           time.Time      `json:"end"`
	CloudProperty string         `json:"cloud_property"`
	MaxCloud      float64        `json:"max_cloud"`
}

// ReduceSource is the per-sensor part of a pooled reduction.
type ReduceSource struct {
	Sensor   string           `json:"sensor"`
	SceneIDs []string         `json:"scene_ids"`
	Mask     expr.Node        `json:"mask"`
	Bands    []expr.NamedExpr `json:"bands"`
}

// ReduceRequest asks for one median composite over the pooled sources.
type ReduceRequest struct {
	Sources []ReduceSource `json:"sources"`
	Area    schema.AreaRef `json:"area"`
	Scale   float64        `json:"scale"`
}

// EvaluateRequest computes new bands. Inputs maps aliases to images; the empty alias is the
// primary image. With Append the output keeps the primary's bands and adds the new ones.
type EvaluateRequest struct {
	Inputs map[string]schema.ImageRef `json:"inputs"`
	Bands  []expr.NamedExpr           `json:"bands"`
	Append bool                       `json:"append"`
}

// HistogramRequest asks for integer value counts of one band inside an area.
type HistogramRequest struct {
	Image schema.ImageRef `json:"image"`
	Band  string          `json:"band"`
	Area  schema.AreaRef  `json:"area"`
	Scale float64         `json:"scale"`
}

// ExportRequest asks the platform to write image bands to external storage.
type ExportRequest struct {
	Image       schema.ImageRef `json:"image"`
	Bands       []string        `json:"bands"`
	Description string          `json:"description"`
	Destination string          `json:"destination"`
	Area        schema.AreaRef  `json:"area"`
	Scale       float64         `json:"scale"`
}

// AreaOfInterest is a caller-owned geometry with derived metadata and a stable fingerprint.
type AreaOfInterest interface {
	Ref() schema.AreaRef
	Summary() schema.AreaSummary
}

// Registry answers which sensors and indices are known, so configuration can be validated
// without touching an engine.
type Registry interface {
	HasSensor(id string) bool
	HasIndex(name string) bool
}

// Builder produces the bytes for a cache entry.
type Builder func(ctx context.Context) ([]byte, error)

// Tier is one cache tier. GetOrCompute returns the stored value for key or builds, stores
// and returns it. A failed build stores nothing and its error is returned unchanged.
type Tier interface {
	GetOrCompute(ctx context.Context, key string, build Builder) ([]byte, error)
}

// CacheManager defines the interface for managing cache stores.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetDurableTier() Tier
	GetEphemeralTier() Tier
	GetCacheStore() CacheStore
	GetEphemeralStore() EphemeralStore
	GetAnalysisStore() AnalysisStore
}

// CacheStore defines the interface for durable cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// EphemeralStore holds TTL-bounded presentation values. Get returns ErrCacheMiss when absent.
type EphemeralStore interface {
	Get(ctx context.Context, key string) ([]byte, int64, error)
	Set(ctx context.Context, key string, value []byte, timestamp int64) error
	GetStatus(ctx context.Context) (schema.EphemeralStatus, error)
	Clear(ctx context.Context) error
	Close() error
}

// AnalysisStore defines the interface for tracking analysis runs.
type AnalysisStore interface {
	// BeginAnalysis creates a new analysis run record and returns its ID.
	BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error)

	// EndAnalysis updates the analysis run with completion data.
	EndAnalysis(analysisID int64, endTime time.Time, totalPairs int, status string) error

	// RecordStatistics stores flattened class statistics for a run.
	RecordStatistics(analysisID int64, rows []schema.StatisticsRow) error

	// GetStatus returns status information about the analysis store.
	GetStatus() (schema.AnalysisStatus, error)

	// GetAllAnalysisRuns returns every recorded run.
	GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error)

	// GetAllClassStatistics returns every recorded statistics row.
	GetAllClassStatistics() ([]schema.ClassStatisticsRecord, error)

	// Close closes the underlying database connection.
	Close() error
}
