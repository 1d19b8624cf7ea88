// Package registry holds the sensor schemas and spectral index formulas.
//
// Both are flat lookup tables keyed by a stable string and populated at process start.
// Adding a sensor or an index is a pure extension: register a new entry.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/expr"
	"github.com/huangsam/vegchange/schema"
)

// SensorSchema maps a sensor product to the canonical band roles.
type SensorSchema struct {
	ID            string
	Name          string
	Bands         map[schema.BandRole]string // canonical role -> native band name
	QABand        string
	Scale         float64
	Offset        float64
	CloudProperty string // per-scene cloud cover metadata field
	MaskBits      []uint // QA bits that flag an unusable pixel
}

// NativeBands returns the native band names in canonical order followed by the QA band.
func (s SensorSchema) NativeBands() []string {
	names := make([]string, 0, len(schema.CanonicalBands)+1)
	for _, role := range schema.CanonicalBands {
		names = append(names, s.Bands[role])
	}
	return append(names, s.QABand)
}

// ToNative inverts the reflectance scaling, mostly for synthetic scenes.
func (s SensorSchema) ToNative(reflectance float64) float64 {
	return (reflectance - s.Offset) / s.Scale
}

// IndexSpec is a named spectral index over canonical bands.
type IndexSpec struct {
	Name        string
	Description string
	Formula     expr.Node
}

// Registry is the sensor and index lookup table. The zero value is empty;
// use New for the built-in entries.
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]SensorSchema
	indices map[string]IndexSpec
}

var _ contract.Registry = (*Registry)(nil)

// New returns a registry populated with the built-in sensors and indices.
func New() *Registry {
	r := &Registry{}
	for _, s := range builtinSensors() {
		r.RegisterSensor(s)
	}
	for _, idx := range builtinIndices() {
		r.RegisterIndex(idx)
	}
	return r
}

// RegisterSensor adds or replaces a sensor schema.
func (r *Registry) RegisterSensor(s SensorSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sensors == nil {
		r.sensors = make(map[string]SensorSchema)
	}
	r.sensors[s.ID] = s
}

// RegisterIndex adds or replaces an index formula.
func (r *Registry) RegisterIndex(idx IndexSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indices == nil {
		r.indices = make(map[string]IndexSpec)
	}
	r.indices[idx.Name] = idx
}

// HasSensor reports whether a schema exists for id.
func (r *Registry) HasSensor(id string) bool {
	_, err := r.Sensor(id)
	return err == nil
}

// HasIndex reports whether a formula exists for name.
func (r *Registry) HasIndex(name string) bool {
	_, err := r.Index(name)
	return err == nil
}

// Sensor looks up a sensor schema.
func (r *Registry) Sensor(id string) (SensorSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sensors[id]
	if !ok {
		return SensorSchema{}, &contract.UnknownSensorError{Sensor: id}
	}
	return s, nil
}

// Index looks up an index formula.
func (r *Registry) Index(name string) (IndexSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indices[name]
	if !ok {
		return IndexSpec{}, &contract.UnknownIndexError{Index: name}
	}
	return idx, nil
}

// Sensors returns all sensor schemas sorted by id.
func (r *Registry) Sensors() []SensorSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SensorSchema, 0, len(r.sensors))
	for _, id := range schema.SortedKeys(r.sensors) {
		out = append(out, r.sensors[id])
	}
	return out
}

// Indices returns all index specs sorted by name.
func (r *Registry) Indices() []IndexSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IndexSpec, 0, len(r.indices))
	for _, name := range schema.SortedKeys(r.indices) {
		out = append(out, r.indices[name])
	}
	return out
}

// Harmonize returns the expressions that rescale a native image to the six canonical
// bands, in canonical order. Each band is value*scale+offset clamped to [0,1].
func (r *Registry) Harmonize(sensorID string) ([]expr.NamedExpr, error) {
	s, err := r.Sensor(sensorID)
	if err != nil {
		return nil, err
	}
	out := make([]expr.NamedExpr, 0, len(schema.CanonicalBands))
	for _, role := range schema.CanonicalBands {
		native, ok := s.Bands[role]
		if !ok {
			return nil, fmt.Errorf("sensor %s has no %s band", sensorID, role)
		}
		scaled := expr.Add(expr.Mul(expr.Band(native), expr.Const(s.Scale)), expr.Const(s.Offset))
		out = append(out, expr.NamedExpr{Name: string(role), Expr: expr.Clamp(scaled, 0, 1)})
	}
	return out, nil
}

// Mask returns the valid-pixel predicate for a sensor: 1 where none of the QA mask bits
// are set, 0 otherwise. Invalid pixels are excluded from reduction, never zeroed.
func (r *Registry) Mask(sensorID string) (expr.Node, error) {
	s, err := r.Sensor(sensorID)
	if err != nil {
		return expr.Node{}, err
	}
	return expr.BitsClear(expr.Band(s.QABand), slices.Clone(s.MaskBits)...), nil
}

// IndexExprs resolves index names to output band definitions in the order given.
func (r *Registry) IndexExprs(names []string) ([]expr.NamedExpr, error) {
	out := make([]expr.NamedExpr, 0, len(names))
	for _, name := range names {
		idx, err := r.Index(name)
		if err != nil {
			return nil, err
		}
		out = append(out, expr.NamedExpr{Name: idx.Name, Expr: idx.Formula})
	}
	return out, nil
}
