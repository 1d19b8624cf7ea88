package contract

import (
	"fmt"
	"maps"
	"math"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/vegchange/schema"
)

// Default values for configuration.
const (
	DefaultScale              = 30.0
	DefaultCloudThreshold     = 20.0
	MaxBufferMeters           = 10000.0
	DefaultMinImages          = 5
	DefaultPrecision          = 2
	DefaultBuildTimeout       = 10 * time.Minute
	DefaultRequestTimeout     = 2 * time.Minute
	DefaultExportTimeout      = 30 * time.Minute
	DefaultExportPollInterval = 10 * time.Second
	DefaultMaxRetries         = 3
	DefaultEphemeralTTL       = 24 * time.Hour
	DefaultExportDestination  = "VegChangeAnalysis"
	DefaultOverpassEndpoint   = "https://overpass-api.de/api/interpreter"
)

// DefaultPeriodIDs are the periods analysed when none are requested.
var DefaultPeriodIDs = []string{"1990s", "2000s", "2010s", "present"}

// DefaultIndices are the indices computed when none are requested.
var DefaultIndices = []string{"ndvi", "nbr"}

// DefaultWorkers is the default number of periods composited concurrently.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// AreaSpec says where the area of interest comes from. Exactly one source is set.
type AreaSpec struct {
	BBox         *[4]float64
	GeoJSONPath  string
	GeoJSON      []byte // inline document, used by MCP requests
	OSMWayID     int64
	BufferMeters float64
}

// Source names the configured source for display.
func (a AreaSpec) Source() string {
	switch {
	case a.BBox != nil:
		return "bbox"
	case len(a.GeoJSON) > 0:
		return "geojson"
	case a.GeoJSONPath != "":
		return "geojson:" + a.GeoJSONPath
	case a.OSMWayID != 0:
		return "osm-way:" + strconv.FormatInt(a.OSMWayID, 10)
	default:
		return ""
	}
}

// Config holds the runtime configuration for the analysis.
// This struct remains the "final, validated" config and is not mutated after validation.
type Config struct {
	// Catalogue is every known period window (built-in plus configured).
	Catalogue []schema.PeriodWindow

	// Periods are the selected windows in request order.
	Periods    []schema.PeriodWindow
	Reference  string
	Indices    []string
	Thresholds map[string]schema.Thresholds
	Sequential bool

	Area           AreaSpec
	Scale          float64
	CloudThreshold float64
	MinImages      int
	Workers        int

	EngineBackend    schema.EngineBackend
	EngineURL        string
	EngineToken      string // Please use env var as this is plaintext
	RequestTimeout   time.Duration
	BuildTimeout     time.Duration
	MaxRetries       int
	OverpassEndpoint string

	Export             bool
	ExportDestination  string
	ExportTimeout      time.Duration
	ExportPollInterval time.Duration

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	EphemeralBackend schema.EphemeralBackend
	EphemeralConnect string
	EphemeralTTL     time.Duration

	AnalysisBackend   schema.DatabaseBackend
	AnalysisDBConnect string // Please use env var as this is plaintext

	Output     schema.OutputMode
	OutputFile string
	ChartFile  string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool
	Language   schema.Language
}

// PeriodWindowRaw is a period window as written in the YAML config file.
type PeriodWindowRaw struct {
	ID          string   `mapstructure:"id"`
	Start       string   `mapstructure:"start"`
	End         string   `mapstructure:"end"`
	Sensors     []string `mapstructure:"sensors"`
	Description string   `mapstructure:"description"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Analysis selection ---
	Periods    string `mapstructure:"periods"`
	Reference  string `mapstructure:"reference"`
	Indices    string `mapstructure:"indices"`
	Sequential bool   `mapstructure:"sequential"`

	// --- Area of interest ---
	BBox         string  `mapstructure:"bbox"`
	GeoJSON      string  `mapstructure:"geojson"`
	OSMWay       int64   `mapstructure:"osm-way"`
	BufferMeters float64 `mapstructure:"buffer"`

	// --- Compositing ---
	Scale          float64 `mapstructure:"scale"`
	CloudThreshold float64 `mapstructure:"cloud-threshold"`
	MinImages      int     `mapstructure:"min-images"`
	Workers        int     `mapstructure:"workers"`

	// --- Engine ---
	Engine           string `mapstructure:"engine"`
	EngineURL        string `mapstructure:"engine-url"`
	EngineToken      string `mapstructure:"engine-token"`
	RequestTimeout   string `mapstructure:"request-timeout"`
	BuildTimeout     string `mapstructure:"build-timeout"`
	MaxRetries       int    `mapstructure:"max-retries"`
	OverpassEndpoint string `mapstructure:"overpass-endpoint"`

	// --- Export ---
	Export             bool   `mapstructure:"export"`
	ExportDestination  string `mapstructure:"export-destination"`
	ExportTimeout      string `mapstructure:"export-timeout"`
	ExportPollInterval string `mapstructure:"export-poll-interval"`

	// --- Storage ---
	CacheBackend      string `mapstructure:"cache-backend"`
	CacheDBConnect    string `mapstructure:"cache-db-connect"`
	EphemeralBackend  string `mapstructure:"ephemeral-backend"`
	EphemeralConnect  string `mapstructure:"ephemeral-connect"`
	EphemeralTTL      string `mapstructure:"ephemeral-ttl"`
	AnalysisBackend   string `mapstructure:"analysis-backend"`
	AnalysisDBConnect string `mapstructure:"analysis-db-connect"`

	// --- Output ---
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Chart      string `mapstructure:"chart"`
	Precision  int    `mapstructure:"precision"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`
	Language   string `mapstructure:"language"`

	// --- Thresholds ---
	ThresholdsStr string                       `mapstructure:"thresholds-override"`
	Thresholds    map[string]schema.Thresholds `mapstructure:"thresholds"`

	// --- Extra period windows from config file ---
	PeriodWindows []PeriodWindowRaw `mapstructure:"period-windows"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Catalogue = slices.Clone(c.Catalogue)
	clone.Periods = slices.Clone(c.Periods)
	clone.Indices = slices.Clone(c.Indices)
	if c.Thresholds != nil {
		clone.Thresholds = make(map[string]schema.Thresholds, len(c.Thresholds))
		maps.Copy(clone.Thresholds, c.Thresholds)
	}
	if c.Area.BBox != nil {
		bbox := *c.Area.BBox
		clone.Area.BBox = &bbox
	}
	clone.Area.GeoJSON = slices.Clone(c.Area.GeoJSON)
	return &clone
}

// PeriodIDs returns the selected period identifiers in request order.
func (c *Config) PeriodIDs() []string {
	ids := make([]string, len(c.Periods))
	for i, p := range c.Periods {
		ids[i] = p.ID
	}
	return ids
}

// ThresholdsFor returns the effective thresholds for an index.
func (c *Config) ThresholdsFor(index string) schema.Thresholds {
	if t, ok := c.Thresholds[index]; ok {
		return t
	}
	return schema.ThresholdsFor(index)
}

// ParamsMap returns the analysis-relevant parameters for run tracking.
func (c *Config) ParamsMap() map[string]any {
	return map[string]any{
		"periods":         c.PeriodIDs(),
		"reference":       c.Reference,
		"indices":         c.Indices,
		"area":            c.Area.Source(),
		"scale":           c.Scale,
		"cloud_threshold": c.CloudThreshold,
		"sequential":      c.Sequential,
		"engine":          c.EngineBackend,
	}
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct. Every failure is a ConfigurationError and no
// engine is contacted.
func ProcessAndValidate(cfg *Config, registry Registry, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processPeriods(cfg, registry, input); err != nil {
		return err
	}
	if err := processIndices(cfg, registry, input); err != nil {
		return err
	}
	if err := processThresholds(cfg, input); err != nil {
		return err
	}
	if err := processArea(cfg, input); err != nil {
		return err
	}
	if err := processEngine(cfg, input); err != nil {
		return err
	}
	return nil
}

// ProcessCatalogue validates everything except the area of interest. Commands that
// never touch imagery, and the MCP server whose requests carry their own area, use it.
func ProcessCatalogue(cfg *Config, registry Registry, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processPeriods(cfg, registry, input); err != nil {
		return err
	}
	if err := processIndices(cfg, registry, input); err != nil {
		return err
	}
	if err := processThresholds(cfg, input); err != nil {
		return err
	}
	return processEngine(cfg, input)
}

// HasArea reports whether any area source was given on the command line or in config.
func (input *ConfigRawInput) HasArea() bool {
	return strings.TrimSpace(input.BBox) != "" || strings.TrimSpace(input.GeoJSON) != "" || input.OSMWay != 0
}

// ProcessArea validates the area of interest alone.
func ProcessArea(cfg *Config, input *ConfigRawInput) error {
	return processArea(cfg, input)
}

// AnalysisRequest overrides the analysis selection of an already validated Config.
// Empty fields keep the base value.
type AnalysisRequest struct {
	Periods    string
	Reference  string
	Indices    string
	Thresholds string
	BBox       string
	GeoJSON    string
	OSMWay     int64
	Buffer     float64
	Language   string
}

// RevalidateAnalysis applies req on top of cfg, which must be a clone of a validated Config.
func RevalidateAnalysis(cfg *Config, registry Registry, req AnalysisRequest) error {
	periods := req.Periods
	if strings.TrimSpace(periods) == "" {
		periods = strings.Join(cfg.PeriodIDs(), ",")
	}
	reference := req.Reference
	if reference == "" && req.Periods == "" {
		reference = cfg.Reference
	}
	if err := selectPeriods(cfg, registry, periods, reference); err != nil {
		return err
	}

	indices := req.Indices
	if strings.TrimSpace(indices) == "" {
		indices = strings.Join(cfg.Indices, ",")
	}
	input := &ConfigRawInput{
		Indices:       indices,
		ThresholdsStr: req.Thresholds,
		Thresholds:    cfg.Thresholds,
		BBox:          req.BBox,
		OSMWay:        req.OSMWay,
		BufferMeters:  req.Buffer,
	}
	if err := processIndices(cfg, registry, input); err != nil {
		return err
	}
	if err := processThresholds(cfg, input); err != nil {
		return err
	}

	switch {
	case req.GeoJSON != "":
		if req.BBox != "" || req.OSMWay != 0 {
			return NewConfigurationError("area", "exactly one of bbox, geojson or osm_way may be given")
		}
		if req.Buffer < 0 || req.Buffer > MaxBufferMeters {
			return NewConfigurationError("buffer", "must be between 0 and %g metres (received %g)", MaxBufferMeters, req.Buffer)
		}
		cfg.Area = AreaSpec{GeoJSON: []byte(req.GeoJSON), BufferMeters: req.Buffer}
	case req.BBox != "" || req.OSMWay != 0:
		if err := processArea(cfg, input); err != nil {
			return err
		}
	}
	if cfg.Area.Source() == "" {
		return NewConfigurationError("area", "one of bbox, geojson or osm_way is required")
	}

	if req.Language != "" {
		lang, err := ParseLanguage(req.Language)
		if err != nil {
			return err
		}
		cfg.Language = lang
	}
	return nil
}

// ProcessStorageOnly validates just the storage settings, for commands that never run an analysis.
func ProcessStorageOnly(cfg *Config, input *ConfigRawInput) error {
	return validateBackendConfigs(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return NewConfigurationError("db-connect", "connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return NewConfigurationError("db-connect", "MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return NewConfigurationError("db-connect", "MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return NewConfigurationError("db-connect", "connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return NewConfigurationError("db-connect", "PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return NewConfigurationError("db-connect", "PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates durable, ephemeral and analysis backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Durable Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return NewConfigurationError("cache-backend", "'%s' must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Ephemeral Backend Validation ---
	cfg.EphemeralBackend = schema.EphemeralBackend(strings.ToLower(input.EphemeralBackend))
	if cfg.EphemeralBackend == "" {
		cfg.EphemeralBackend = schema.MemoryEphemeral
	}
	if _, ok := schema.ValidEphemeralBackends[cfg.EphemeralBackend]; !ok {
		return NewConfigurationError("ephemeral-backend", "'%s' must be memory, redis, none", input.EphemeralBackend)
	}
	cfg.EphemeralConnect = input.EphemeralConnect
	if cfg.EphemeralBackend == schema.RedisEphemeral && cfg.EphemeralConnect == "" {
		return NewConfigurationError("ephemeral-connect", "a redis address or redis:// URL is required when using the redis backend")
	}
	ttl, err := parseDurationOr(input.EphemeralTTL, DefaultEphemeralTTL, "ephemeral-ttl")
	if err != nil {
		return err
	}
	cfg.EphemeralTTL = ttl

	// --- Analysis Backend Validation ---
	cfg.AnalysisBackend = schema.DatabaseBackend(strings.ToLower(input.AnalysisBackend))
	if cfg.AnalysisBackend != "" {
		if _, ok := schema.ValidDatabaseBackends[cfg.AnalysisBackend]; !ok {
			return NewConfigurationError("analysis-backend", "'%s' must be sqlite, mysql, postgresql, none", input.AnalysisBackend)
		}
		cfg.AnalysisDBConnect = input.AnalysisDBConnect
		if err := ValidateDatabaseConnectionString(cfg.AnalysisBackend, cfg.AnalysisDBConnect); err != nil {
			return err
		}

		// Validate that cache and analysis use different databases
		if cfg.CacheBackend == schema.SQLiteBackend && cfg.AnalysisBackend == schema.SQLiteBackend {
			cacheDBPath := cfg.CacheDBConnect
			if cacheDBPath == "" {
				cacheDBPath = GetCacheDBFilePath()
			}
			analysisDBPath := cfg.AnalysisDBConnect
			if analysisDBPath == "" {
				analysisDBPath = GetAnalysisDBFilePath()
			}
			if filepath.Clean(cacheDBPath) == filepath.Clean(analysisDBPath) {
				return NewConfigurationError("analysis-db-connect", "cache and analysis storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
			}
		}
	}

	return nil
}

// validateSimpleInputs processes and validates scalar fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.ChartFile = input.Chart
	cfg.Width = input.Width
	cfg.Sequential = input.Sequential
	cfg.Export = input.Export

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return NewConfigurationError("color", "%v", err)
	}
	cfg.UseColors = colors

	lang, err := ParseLanguage(input.Language)
	if err != nil {
		return err
	}
	cfg.Language = lang

	// --- 1. Scale and cloud threshold ---
	if input.Scale <= 0 {
		return NewConfigurationError("scale", "must be greater than 0 (received %g)", input.Scale)
	}
	cfg.Scale = input.Scale

	if input.CloudThreshold < 0 || input.CloudThreshold > 100 {
		return NewConfigurationError("cloud-threshold", "must be between 0 and 100 (received %g)", input.CloudThreshold)
	}
	cfg.CloudThreshold = input.CloudThreshold

	if input.MinImages < 0 {
		return NewConfigurationError("min-images", "cannot be negative (received %d)", input.MinImages)
	}
	cfg.MinImages = input.MinImages

	// --- 2. Workers Validation ---
	if input.Workers <= 0 {
		return NewConfigurationError("workers", "must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 3. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 4 {
		return NewConfigurationError("precision", "must be between 1 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return NewConfigurationError("output", "'%s' must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return NewConfigurationError("output-file", "is required for parquet output")
	}

	// --- 4. Export ---
	cfg.ExportDestination = strings.TrimSpace(input.ExportDestination)
	if cfg.ExportDestination == "" {
		cfg.ExportDestination = DefaultExportDestination
	}
	if cfg.ExportTimeout, err = parseDurationOr(input.ExportTimeout, DefaultExportTimeout, "export-timeout"); err != nil {
		return err
	}
	if cfg.ExportPollInterval, err = parseDurationOr(input.ExportPollInterval, DefaultExportPollInterval, "export-poll-interval"); err != nil {
		return err
	}

	// --- 5. Backend Validation ---
	return validateBackendConfigs(cfg, input)
}

// processPeriods builds the catalogue, resolves the requested periods and the reference.
func processPeriods(cfg *Config, registry Registry, input *ConfigRawInput) error {
	catalogue := slices.Clone(schema.DefaultPeriods)
	for _, raw := range input.PeriodWindows {
		window, err := parsePeriodWindow(raw)
		if err != nil {
			return err
		}
		if idx := slices.IndexFunc(catalogue, func(p schema.PeriodWindow) bool { return p.ID == window.ID }); idx >= 0 {
			catalogue[idx] = window
		} else {
			catalogue = append(catalogue, window)
		}
	}
	cfg.Catalogue = catalogue
	return selectPeriods(cfg, registry, input.Periods, input.Reference)
}

// selectPeriods resolves the requested period ids and the reference against cfg.Catalogue.
func selectPeriods(cfg *Config, registry Registry, periods, reference string) error {
	catalogue := cfg.Catalogue
	ids := splitList(periods)
	if len(ids) == 0 {
		ids = slices.Clone(DefaultPeriodIDs)
	}
	if len(ids) < 2 {
		return NewConfigurationError("periods", "at least 2 periods are required for change detection (received %d)", len(ids))
	}

	cfg.Periods = nil
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			return NewConfigurationError("periods", "period '%s' is listed twice", id)
		}
		seen[id] = true
		window, ok := schema.FindPeriod(catalogue, id)
		if !ok {
			return NewConfigurationError("periods", "unknown period '%s'", id)
		}
		for _, sensor := range window.Sensors {
			if !registry.HasSensor(sensor) {
				return &UnknownSensorError{Sensor: sensor}
			}
		}
		cfg.Periods = append(cfg.Periods, window)
	}

	cfg.Reference = schema.NormalizeName(reference)
	if cfg.Reference == "" {
		cfg.Reference = ids[0]
	}
	if !seen[cfg.Reference] {
		return NewConfigurationError("reference", "reference period '%s' must be one of the selected periods %v", cfg.Reference, ids)
	}
	return nil
}

// parsePeriodWindow converts a config-file window into a validated PeriodWindow.
func parsePeriodWindow(raw PeriodWindowRaw) (schema.PeriodWindow, error) {
	id := schema.NormalizeName(raw.ID)
	if id == "" {
		return schema.PeriodWindow{}, NewConfigurationError("period-windows", "every window needs an id")
	}
	start, err := schema.ParseDate(raw.Start)
	if err != nil {
		return schema.PeriodWindow{}, NewConfigurationError("period-windows", "window '%s': %v", id, err)
	}
	end, err := schema.ParseDate(raw.End)
	if err != nil {
		return schema.PeriodWindow{}, NewConfigurationError("period-windows", "window '%s': %v", id, err)
	}
	if !start.Before(end) {
		return schema.PeriodWindow{}, NewConfigurationError("period-windows", "window '%s' must start before it ends", id)
	}
	if len(raw.Sensors) == 0 {
		return schema.PeriodWindow{}, NewConfigurationError("period-windows", "window '%s' needs at least one sensor", id)
	}
	return schema.PeriodWindow{
		ID:          id,
		Start:       start,
		End:         end,
		Sensors:     slices.Clone(raw.Sensors),
		Description: raw.Description,
	}, nil
}

// processIndices validates the requested index names against the registry.
func processIndices(cfg *Config, registry Registry, input *ConfigRawInput) error {
	names := splitList(input.Indices)
	if len(names) == 0 {
		names = slices.Clone(DefaultIndices)
	}
	cfg.Indices = nil
	for _, name := range names {
		if !registry.HasIndex(name) {
			return &UnknownIndexError{Index: name}
		}
		if !slices.Contains(cfg.Indices, name) {
			cfg.Indices = append(cfg.Indices, name)
		}
	}
	return nil
}

// processThresholds merges built-in, config-file and flag thresholds and validates the ordering.
// Command-line --thresholds-override takes precedence over config file settings.
func processThresholds(cfg *Config, input *ConfigRawInput) error {
	thresholds := make(map[string]schema.Thresholds)
	for _, index := range cfg.Indices {
		thresholds[index] = schema.ThresholdsFor(index)
	}
	for index, t := range input.Thresholds {
		thresholds[schema.NormalizeName(index)] = t
	}
	if input.ThresholdsStr != "" {
		parsed, err := ParseThresholdsString(input.ThresholdsStr)
		if err != nil {
			return NewConfigurationError("thresholds-override", "%v", err)
		}
		maps.Copy(thresholds, parsed)
	}
	for index, t := range thresholds {
		if err := t.Validate(); err != nil {
			return NewConfigurationError("thresholds", "index %s: %v", index, err)
		}
	}
	cfg.Thresholds = thresholds
	return nil
}

// processArea checks that exactly one area source is configured and well formed.
func processArea(cfg *Config, input *ConfigRawInput) error {
	cfg.Area = AreaSpec{}
	if input.BufferMeters < 0 || input.BufferMeters > MaxBufferMeters {
		return NewConfigurationError("buffer", "must be between 0 and %g metres (received %g)", MaxBufferMeters, input.BufferMeters)
	}
	cfg.Area.BufferMeters = input.BufferMeters

	sources := 0
	if strings.TrimSpace(input.BBox) != "" {
		bbox, err := ParseBBox(input.BBox)
		if err != nil {
			return err
		}
		cfg.Area.BBox = &bbox
		sources++
	}
	if strings.TrimSpace(input.GeoJSON) != "" {
		cfg.Area.GeoJSONPath = strings.TrimSpace(input.GeoJSON)
		sources++
	}
	if input.OSMWay != 0 {
		if input.OSMWay < 0 {
			return NewConfigurationError("osm-way", "must be a positive way id (received %d)", input.OSMWay)
		}
		cfg.Area.OSMWayID = input.OSMWay
		sources++
	}
	if sources != 1 {
		return NewConfigurationError("area", "exactly one of --bbox, --geojson or --osm-way is required (received %d)", sources)
	}
	return nil
}

// processEngine validates the compute engine settings.
func processEngine(cfg *Config, input *ConfigRawInput) error {
	cfg.EngineBackend = schema.EngineBackend(strings.ToLower(input.Engine))
	if cfg.EngineBackend == "" {
		cfg.EngineBackend = schema.MemoryEngine
	}
	if _, ok := schema.ValidEngineBackends[cfg.EngineBackend]; !ok {
		return NewConfigurationError("engine", "'%s' must be memory or remote", input.Engine)
	}
	cfg.EngineURL = strings.TrimRight(strings.TrimSpace(input.EngineURL), "/")
	cfg.EngineToken = input.EngineToken
	if cfg.EngineBackend == schema.RemoteEngine && cfg.EngineURL == "" {
		return NewConfigurationError("engine-url", "is required when using the remote engine")
	}
	if input.MaxRetries < 0 {
		return NewConfigurationError("max-retries", "cannot be negative (received %d)", input.MaxRetries)
	}
	cfg.MaxRetries = input.MaxRetries

	var err error
	if cfg.RequestTimeout, err = parseDurationOr(input.RequestTimeout, DefaultRequestTimeout, "request-timeout"); err != nil {
		return err
	}
	if cfg.BuildTimeout, err = parseDurationOr(input.BuildTimeout, DefaultBuildTimeout, "build-timeout"); err != nil {
		return err
	}
	cfg.OverpassEndpoint = strings.TrimSpace(input.OverpassEndpoint)
	if cfg.OverpassEndpoint == "" {
		cfg.OverpassEndpoint = DefaultOverpassEndpoint
	}
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat" and checks coordinate ranges.
func ParseBBox(s string) ([4]float64, error) {
	var bbox [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return bbox, NewConfigurationError("bbox", "expected 'minLon,minLat,maxLon,maxLat', got '%s'", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return bbox, NewConfigurationError("bbox", "value '%s' is not a number", strings.TrimSpace(p))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return bbox, NewConfigurationError("bbox", "value '%s' is not a finite number", strings.TrimSpace(p))
		}
		bbox[i] = v
	}
	if bbox[0] < -180 || bbox[2] > 180 {
		return bbox, NewConfigurationError("bbox", "longitude must be between -180 and 180")
	}
	if bbox[1] < -90 || bbox[3] > 90 {
		return bbox, NewConfigurationError("bbox", "latitude must be between -90 and 90")
	}
	if bbox[0] >= bbox[2] {
		return bbox, NewConfigurationError("bbox", "minLon must be less than maxLon")
	}
	if bbox[1] >= bbox[3] {
		return bbox, NewConfigurationError("bbox", "minLat must be less than maxLat")
	}
	return bbox, nil
}

// ParseThresholdsString parses "ndvi:-0.15,-0.05,0.05,0.15;nbr:..." into thresholds per index.
// Four values are strong_loss, moderate_loss, moderate_gain, strong_gain with the stable band
// spanning the moderate bounds; six values list every boundary in order.
func ParseThresholdsString(s string) (map[string]schema.Thresholds, error) {
	result := make(map[string]schema.Thresholds)

	for part := range strings.SplitSeq(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyValue := strings.SplitN(part, ":", 2)
		if len(keyValue) != 2 {
			return nil, fmt.Errorf("invalid threshold format '%s', expected 'index:v1,v2,...'", part)
		}
		index := schema.NormalizeName(keyValue[0])
		if index == "" {
			return nil, fmt.Errorf("invalid threshold format '%s', missing index name", part)
		}
		var vals []float64
		for raw := range strings.SplitSeq(keyValue[1], ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid threshold value '%s' for index %s: %w", strings.TrimSpace(raw), index, err)
			}
			vals = append(vals, v)
		}
		switch len(vals) {
		case 4:
			result[index] = schema.Thresholds{
				StrongLoss: vals[0], ModerateLoss: vals[1], StableMin: vals[1],
				StableMax: vals[2], ModerateGain: vals[2], StrongGain: vals[3],
			}
		case 6:
			result[index] = schema.Thresholds{
				StrongLoss: vals[0], ModerateLoss: vals[1], StableMin: vals[2],
				StableMax: vals[3], ModerateGain: vals[4], StrongGain: vals[5],
			}
		default:
			return nil, fmt.Errorf("index %s needs 4 or 6 threshold values, got %d", index, len(vals))
		}
	}

	return result, nil
}

// splitList splits a comma-separated list, normalizing and dropping empties.
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if v := schema.NormalizeName(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseDurationOr parses a Go duration, or returns def when s is empty.
func parseDurationOr(s string, def time.Duration, field string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, NewConfigurationError(field, "'%s' is not a duration like 30s or 5m", s)
	}
	if d <= 0 {
		return 0, NewConfigurationError(field, "must be positive (received %s)", s)
	}
	return d, nil
}

// ParseLanguage validates a label language. Empty means English.
func ParseLanguage(s string) (schema.Language, error) {
	lang := schema.Language(strings.ToLower(strings.TrimSpace(s)))
	if lang == "" {
		return schema.English, nil
	}
	if _, ok := schema.ValidLanguages[lang]; !ok {
		return "", NewConfigurationError("language", "'%s' must be en or es", s)
	}
	return lang, nil
}
