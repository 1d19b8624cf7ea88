// Package schema has models, enums and static catalogues for all parts of vegchange.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ImageRef is an opaque handle to an image held by the compute engine.
type ImageRef string

// ChangeClass is the ordinal bucket a delta falls into. Zero means no class (no-data).
type ChangeClass int

// Change classes in ascending order of delta.
const (
	NoClass      ChangeClass = 0
	StrongLoss   ChangeClass = 1
	ModerateLoss ChangeClass = 2
	Stable       ChangeClass = 3
	ModerateGain ChangeClass = 4
	StrongGain   ChangeClass = 5
)

// AllChangeClasses lists every assignable class.
var AllChangeClasses = []ChangeClass{StrongLoss, ModerateLoss, Stable, ModerateGain, StrongGain}

// Thresholds partition the real line into the five change classes.
type Thresholds struct {
	StrongLoss   float64 `json:"strong_loss" mapstructure:"strong_loss"`
	ModerateLoss float64 `json:"moderate_loss" mapstructure:"moderate_loss"`
	StableMin    float64 `json:"stable_min" mapstructure:"stable_min"`
	StableMax    float64 `json:"stable_max" mapstructure:"stable_max"`
	ModerateGain float64 `json:"moderate_gain" mapstructure:"moderate_gain"`
	StrongGain   float64 `json:"strong_gain" mapstructure:"strong_gain"`
}

// Validate checks strong_loss < moderate_loss <= stable_min <= stable_max <= moderate_gain < strong_gain.
func (t Thresholds) Validate() error {
	vals := []float64{t.StrongLoss, t.ModerateLoss, t.StableMin, t.StableMax, t.ModerateGain, t.StrongGain}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("thresholds must be finite numbers")
		}
	}
	switch {
	case !(t.StrongLoss < t.ModerateLoss):
		return fmt.Errorf("strong_loss (%g) must be less than moderate_loss (%g)", t.StrongLoss, t.ModerateLoss)
	case !(t.ModerateLoss <= t.StableMin):
		return fmt.Errorf("moderate_loss (%g) must not exceed stable_min (%g)", t.ModerateLoss, t.StableMin)
	case !(t.StableMin <= t.StableMax):
		return fmt.Errorf("stable_min (%g) must not exceed stable_max (%g)", t.StableMin, t.StableMax)
	case !(t.StableMax <= t.ModerateGain):
		return fmt.Errorf("stable_max (%g) must not exceed moderate_gain (%g)", t.StableMax, t.ModerateGain)
	case !(t.ModerateGain < t.StrongGain):
		return fmt.Errorf("moderate_gain (%g) must be less than strong_gain (%g)", t.ModerateGain, t.StrongGain)
	}
	return nil
}

// Classify maps a delta to its class. Boundaries are tested left to right so every finite
// value lands in exactly one class; moderate_loss and moderate_gain themselves are stable.
// NaN is no-data and returns NoClass.
func (t Thresholds) Classify(d float64) ChangeClass {
	switch {
	case math.IsNaN(d):
		return NoClass
	case d < t.StrongLoss:
		return StrongLoss
	case d < t.ModerateLoss:
		return ModerateLoss
	case d <= t.ModerateGain:
		return Stable
	case d <= t.StrongGain:
		return ModerateGain
	default:
		return StrongGain
	}
}

// PeriodWindow maps a period identifier to its date range and sensors.
type PeriodWindow struct {
	ID          string    `json:"id" mapstructure:"id"`
	Start       time.Time `json:"start" mapstructure:"start"`
	End         time.Time `json:"end" mapstructure:"end"`
	Sensors     []string  `json:"sensors" mapstructure:"sensors"`
	Description string    `json:"description,omitempty" mapstructure:"description"`
}

// Scene is one acquisition reported by the compute engine.
type Scene struct {
	ID         string    `json:"id"`
	Sensor     string    `json:"sensor"`
	Date       time.Time `json:"date"`
	CloudCover float64   `json:"cloud_cover"`
}

// AreaRef is the transport form of an area of interest handed to the compute engine.
type AreaRef struct {
	Fingerprint string          `json:"fingerprint"`
	BBox        [4]float64      `json:"bbox"`
	GeoJSON     json.RawMessage `json:"geojson"`
}

// Composite is one reduced image per period: six canonical bands plus appended index bands.
type Composite struct {
	Period          string   `json:"period"`
	Sensors         []string `json:"sensors"`
	Image           ImageRef `json:"image"`
	Bands           []string `json:"bands"`
	SceneCount      int      `json:"scene_count"`
	AreaFingerprint string   `json:"area_fingerprint"`
	CloudThreshold  float64  `json:"cloud_threshold"`
}

// HasBand reports whether the composite already exposes the named band.
func (c Composite) HasBand(name string) bool {
	for _, b := range c.Bands {
		if b == name {
			return true
		}
	}
	return false
}

// DeltaResult holds the continuous delta band and its classified band for one
// (reference, comparison, index) triple. Both bands live in Image.
type DeltaResult struct {
	Reference    string     `json:"reference"`
	Comparison   string     `json:"comparison"`
	Index        string     `json:"index"`
	Image        ImageRef   `json:"image"`
	DeltaBand    string     `json:"delta_band"`
	ClassBand    string     `json:"class_band"`
	RelativeBand string     `json:"relative_band"`
	Thresholds   Thresholds `json:"thresholds"`
}

// PairKey names a (reference, comparison) pair.
func PairKey(reference, comparison string) string {
	return reference + "_to_" + comparison
}

// Histogram counts pixels per integer band value. No-data pixels are never counted.
type Histogram map[int]int64

// ClassStat is the statistics row for one change class.
type ClassStat struct {
	Class      ChangeClass `json:"class"`
	Label      string      `json:"label"`
	Color      string      `json:"color"`
	PixelCount int64       `json:"pixel_count"`
	AreaHa     float64     `json:"area_ha"`
	Percent    float64     `json:"percent"`
}

// ClassStatistics is the per-class breakdown for one DeltaResult.
type ClassStatistics struct {
	Classes     []ClassStat `json:"classes"`
	ValidPixels int64       `json:"valid_pixels"`
	ValidAreaHa float64     `json:"valid_area_ha"`
	Scale       float64     `json:"scale"`
}

// Class returns the row for c, or a zero row when absent.
func (s ClassStatistics) Class(c ChangeClass) ClassStat {
	for _, row := range s.Classes {
		if row.Class == c {
			return row
		}
	}
	return ClassStat{Class: c}
}

// AnalysisResult is the full output of one successful analysis.
type AnalysisResult struct {
	ID         string                                `json:"id"`
	Reference  string                                `json:"reference"`
	Periods    []string                              `json:"periods"`
	Indices    []string                              `json:"indices"`
	Area       AreaSummary                           `json:"area"`
	Composites map[string]Composite                  `json:"composites"`
	Deltas     map[string]map[string]DeltaResult     `json:"deltas"`
	Statistics map[string]map[string]ClassStatistics `json:"statistics"`
	Exports    []ExportHandle                        `json:"exports,omitempty"`
	StartedAt  time.Time                             `json:"started_at"`
	Duration   time.Duration                         `json:"duration"`
}

// PairKeys returns the pair keys of the result in a stable order.
func (r *AnalysisResult) PairKeys() []string {
	return SortedKeys(r.Statistics)
}

// AreaSummary is the metadata of the area of interest carried in results.
type AreaSummary struct {
	Fingerprint string     `json:"fingerprint"`
	BBox        [4]float64 `json:"bbox"`
	Centroid    [2]float64 `json:"centroid"`
	AreaHa      float64    `json:"area_ha"`
	Source      string     `json:"source"`
}

// ExportHandle identifies an asynchronous export task.
type ExportHandle struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Destination string `json:"destination"`
}

// ExportStatus is a snapshot of an export task.
type ExportStatus struct {
	Handle ExportHandle `json:"handle"`
	State  ExportState  `json:"state"`
	URI    string       `json:"uri,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// VisParams controls quick-look rendering.
type VisParams struct {
	Bands []string `json:"bands"`
	Min   float64  `json:"min"`
	Max   float64  `json:"max"`
	Width int      `json:"width"`
}
