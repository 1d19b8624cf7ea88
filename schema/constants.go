package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the durable cache and run tracking.
	DatabaseBackend string

	// EphemeralBackend represents the store behind the TTL-bounded presentation cache.
	EphemeralBackend string

	// EngineBackend represents the compute engine implementation.
	EngineBackend string

	// JobStatus represents the lifecycle state of an asynchronous analysis job.
	JobStatus string

	// ExportState represents the lifecycle state of an export task on the compute platform.
	ExportState string

	// Stage represents a state of the analysis pipeline.
	Stage string

	// BandRole identifies a canonical band independent of the sensor that produced it.
	BandRole string

	// Language selects the language of change class labels.
	Language string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All durable backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All ephemeral backends supported.
const (
	MemoryEphemeral EphemeralBackend = "memory" // default
	RedisEphemeral  EphemeralBackend = "redis"
	NoneEphemeral   EphemeralBackend = "none"
)

// All label languages supported.
const (
	English Language = "en" // default
	Spanish Language = "es"
)

// ValidLanguages lists all valid label languages.
var ValidLanguages = map[Language]struct{}{
	English: {},
	Spanish: {},
}

// All compute engines supported.
const (
	MemoryEngine EngineBackend = "memory" // default
	RemoteEngine EngineBackend = "remote"
)

// All job statuses.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// All export states reported by the compute platform.
const (
	ExportPending   ExportState = "pending"
	ExportRunning   ExportState = "running"
	ExportCompleted ExportState = "completed"
	ExportFailed    ExportState = "failed"
)

// Pipeline stages in execution order, plus the failure terminal.
const (
	StageValidating  Stage = "validating"
	StageCompositing Stage = "compositing"
	StageIndexing    Stage = "indexing"
	StageDetecting   Stage = "detecting"
	StageAggregating Stage = "aggregating"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Canonical band roles.
const (
	Blue  BandRole = "blue"
	Green BandRole = "green"
	Red   BandRole = "red"
	NIR   BandRole = "nir"
	SWIR1 BandRole = "swir1"
	SWIR2 BandRole = "swir2"
)

// CanonicalBands is the fixed order every harmonized image exposes.
var CanonicalBands = []BandRole{Blue, Green, Red, NIR, SWIR1, SWIR2}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid durable backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidEphemeralBackends lists all valid ephemeral backends.
var ValidEphemeralBackends = map[EphemeralBackend]struct{}{
	MemoryEphemeral: {},
	RedisEphemeral:  {},
	NoneEphemeral:   {},
}

// ValidEngineBackends lists all valid compute engines.
var ValidEngineBackends = map[EngineBackend]struct{}{
	MemoryEngine: {},
	RemoteEngine: {},
}

// stageOrder ranks stages so transitions can be checked for monotonicity.
var stageOrder = map[Stage]int{
	StageValidating:  0,
	StageCompositing: 1,
	StageIndexing:    2,
	StageDetecting:   3,
	StageAggregating: 4,
	StageDone:        5,
}

// Precedes reports whether s comes strictly before other in the pipeline.
// The failure terminal precedes nothing and follows everything.
func (s Stage) Precedes(other Stage) bool {
	if s == StageFailed {
		return false
	}
	if other == StageFailed {
		return s != StageDone
	}
	return stageOrder[s] < stageOrder[other]
}

// Terminal reports whether the status ends a job's lifecycle.
func (j JobStatus) Terminal() bool {
	return j == JobCompleted || j == JobFailed || j == JobCancelled
}

// Terminal reports whether an export state is final.
func (e ExportState) Terminal() bool {
	return e == ExportCompleted || e == ExportFailed
}
