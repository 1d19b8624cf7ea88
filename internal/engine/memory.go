// Package engine provides ComputeEngine implementations: an HTTP client for the remote
// geospatial platform and an in-process engine over synthetic scenes.
package engine

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/huangsam/vegchange/internal/aoi"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/expr"
	"github.com/huangsam/vegchange/schema"
)

// DefaultGridSize is the raster width and height used by the memory engine.
const DefaultGridSize = 16

// SyntheticScene is a scene whose native pixel values come from a function.
type SyntheticScene struct {
	schema.Scene
	// Pixel returns native band values (including the QA band) for grid cell col,row.
	Pixel func(col, row int) map[string]float64
}

// raster is a materialised image on the engine grid. NaN is no-data.
type raster struct {
	bands []string
	data  map[string][]float64
}

type exportTask struct {
	handle schema.ExportHandle
	polls  int
	failed bool
}

// MemoryEngine evaluates requests in process over a fixed grid laid across the area's
// bounding box. It exists for tests and demos and does not scale.
type MemoryEngine struct {
	namespace string
	grid      int

	mu      sync.RWMutex
	scenes  map[string][]SyntheticScene
	images  map[schema.ImageRef]*raster
	exports map[string]*exportTask

	// ExportPollsToComplete is how many status polls an export stays pending/running.
	ExportPollsToComplete int

	calls sync.Map // operation -> *atomic.Int64
}

var _ contract.ComputeEngine = (*MemoryEngine)(nil)

// NewMemoryEngine returns an engine with no scenes. Image references it hands out are
// only meaningful to this instance, so its namespace is unique.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		namespace:             "memory-" + uuid.NewString(),
		grid:                  DefaultGridSize,
		scenes:                make(map[string][]SyntheticScene),
		images:                make(map[schema.ImageRef]*raster),
		exports:               make(map[string]*exportTask),
		ExportPollsToComplete: 2,
	}
}

// WithGridSize sets the raster width and height.
func (m *MemoryEngine) WithGridSize(n int) *MemoryEngine {
	if n > 0 {
		m.grid = n
	}
	return m
}

// AddScenes registers synthetic scenes.
func (m *MemoryEngine) AddScenes(scenes ...SyntheticScene) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scenes {
		m.scenes[s.Sensor] = append(m.scenes[s.Sensor], s)
	}
}

// Calls returns how many times an operation was invoked.
func (m *MemoryEngine) Calls(op string) int64 {
	if v, ok := m.calls.Load(op); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// TotalCalls returns the number of engine operations invoked so far.
func (m *MemoryEngine) TotalCalls() int64 {
	var total int64
	m.calls.Range(func(_, v any) bool {
		total += v.(*atomic.Int64).Load()
		return true
	})
	return total
}

func (m *MemoryEngine) count(op string) {
	v, _ := m.calls.LoadOrStore(op, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// Namespace implements contract.ComputeEngine.
func (m *MemoryEngine) Namespace() string { return m.namespace }

// ListScenes implements contract.ComputeEngine.
func (m *MemoryEngine) ListScenes(ctx context.Context, q contract.SceneQuery) ([]schema.Scene, error) {
	m.count("list_scenes")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schema.Scene
	for _, s := range m.scenes[q.Sensor] {
		if s.Date.Before(q.Start) || s.Date.After(q.End) {
			continue
		}
		if s.CloudCover > q.MaxCloud {
			continue
		}
		out = append(out, s.Scene)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Reduce implements contract.ComputeEngine. Every valid observation of every source is
// pooled per pixel before the median is taken.
func (m *MemoryEngine) Reduce(ctx context.Context, req contract.ReduceRequest) (schema.ImageRef, error) {
	m.count("reduce")
	matcher, err := aoi.NewMatcher(req.Area)
	if err != nil {
		return "", err
	}

	type source struct {
		mask   expr.Node
		bands  []expr.NamedExpr
		scenes []SyntheticScene
	}
	var sources []source
	var bandNames []string

	m.mu.RLock()
	for _, src := range req.Sources {
		var picked []SyntheticScene
		for _, s := range m.scenes[src.Sensor] {
			if slices.Contains(src.SceneIDs, s.ID) {
				picked = append(picked, s)
			}
		}
		if len(picked) != len(src.SceneIDs) {
			m.mu.RUnlock()
			return "", &contract.RemoteComputeError{Operation: "reduce", StatusCode: 404, Err: fmt.Errorf("unknown scene in %s", src.Sensor)}
		}
		names := make([]string, len(src.Bands))
		for i, b := range src.Bands {
			names[i] = b.Name
		}
		if bandNames == nil {
			bandNames = names
		} else if !slices.Equal(bandNames, names) {
			m.mu.RUnlock()
			return "", &contract.RemoteComputeError{Operation: "reduce", StatusCode: 400, Err: fmt.Errorf("sources disagree on output bands")}
		}
		sources = append(sources, source{mask: src.Mask, bands: src.Bands, scenes: picked})
	}
	m.mu.RUnlock()

	n := m.grid * m.grid
	out := &raster{bands: slices.Clone(bandNames), data: make(map[string][]float64, len(bandNames))}
	for _, name := range bandNames {
		out.data[name] = make([]float64, n)
	}

	pool := make(map[string][]float64, len(bandNames))
	for row := range m.grid {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for col := range m.grid {
			i := row*m.grid + col
			for _, name := range bandNames {
				pool[name] = pool[name][:0]
			}
			if m.inside(matcher, col, row) {
				for _, src := range sources {
					for _, sc := range src.scenes {
						native := sc.Pixel(col, row)
						lookup := func(_, band string) (float64, bool) {
							v, ok := native[band]
							return v, ok
						}
						valid, err := expr.Eval(src.mask, lookup)
						if err != nil {
							return "", &contract.RemoteComputeError{Operation: "reduce", StatusCode: 400, Err: err}
						}
						if valid != 1 {
							continue
						}
						for _, b := range src.bands {
							v, err := expr.Eval(b.Expr, lookup)
							if err != nil {
								return "", &contract.RemoteComputeError{Operation: "reduce", StatusCode: 400, Err: err}
							}
							if !math.IsNaN(v) {
								pool[b.Name] = append(pool[b.Name], v)
							}
						}
					}
				}
			}
			for _, name := range bandNames {
				out.data[name][i] = median(pool[name])
			}
		}
	}
	return m.store(out), nil
}

// Evaluate implements contract.ComputeEngine.
func (m *MemoryEngine) Evaluate(ctx context.Context, req contract.EvaluateRequest) (schema.ImageRef, error) {
	m.count("evaluate")
	if err := ctx.Err(); err != nil {
		return "", err
	}

	inputs := make(map[string]*raster, len(req.Inputs))
	m.mu.RLock()
	for alias, ref := range req.Inputs {
		img, ok := m.images[ref]
		if !ok {
			m.mu.RUnlock()
			return "", &contract.RemoteComputeError{Operation: "evaluate", StatusCode: 404, Err: fmt.Errorf("unknown image %s", ref)}
		}
		inputs[alias] = img
	}
	m.mu.RUnlock()

	out := &raster{data: make(map[string][]float64)}
	if primary, ok := inputs[""]; ok && req.Append {
		out.bands = slices.Clone(primary.bands)
		for _, b := range primary.bands {
			out.data[b] = primary.data[b]
		}
	}

	n := m.grid * m.grid
	for _, b := range req.Bands {
		values := make([]float64, n)
		for i := range n {
			lookup := func(image, band string) (float64, bool) {
				img, ok := inputs[image]
				if !ok {
					return 0, false
				}
				col, ok := img.data[band]
				if !ok {
					return 0, false
				}
				return col[i], true
			}
			v, err := expr.Eval(b.Expr, lookup)
			if err != nil {
				return "", &contract.RemoteComputeError{Operation: "evaluate", StatusCode: 400, Err: err}
			}
			values[i] = v
		}
		if !slices.Contains(out.bands, b.Name) {
			out.bands = append(out.bands, b.Name)
		}
		out.data[b.Name] = values
	}
	return m.store(out), nil
}

// Histogram implements contract.ComputeEngine.
func (m *MemoryEngine) Histogram(ctx context.Context, req contract.HistogramRequest) (schema.Histogram, error) {
	m.count("histogram")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matcher, err := aoi.NewMatcher(req.Area)
	if err != nil {
		return nil, err
	}
	img, err := m.image(req.Image)
	if err != nil {
		return nil, err
	}
	values, ok := img.data[req.Band]
	if !ok {
		return nil, &contract.RemoteComputeError{Operation: "histogram", StatusCode: 400, Err: fmt.Errorf("image %s has no band %s", req.Image, req.Band)}
	}

	hist := schema.Histogram{}
	for row := range m.grid {
		for col := range m.grid {
			v := values[row*m.grid+col]
			if math.IsNaN(v) || !m.inside(matcher, col, row) {
				continue
			}
			hist[int(math.Round(v))]++
		}
	}
	return hist, nil
}

// QuickLook implements contract.ComputeEngine.
func (m *MemoryEngine) QuickLook(_ context.Context, img schema.ImageRef, vis schema.VisParams) (string, error) {
	m.count("quicklook")
	if _, err := m.image(img); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("bands", strings.Join(vis.Bands, ","))
	q.Set("min", fmt.Sprint(vis.Min))
	q.Set("max", fmt.Sprint(vis.Max))
	if vis.Width > 0 {
		q.Set("width", fmt.Sprint(vis.Width))
	}
	return fmt.Sprintf("memory://%s/%s?%s", m.namespace, img, q.Encode()), nil
}

// Export implements contract.ComputeEngine. Tasks complete after ExportPollsToComplete polls.
func (m *MemoryEngine) Export(_ context.Context, req contract.ExportRequest) (schema.ExportHandle, error) {
	m.count("export")
	img, err := m.image(req.Image)
	if err != nil {
		return schema.ExportHandle{}, err
	}
	for _, b := range req.Bands {
		if !slices.Contains(img.bands, b) {
			return schema.ExportHandle{}, &contract.RemoteComputeError{Operation: "export", StatusCode: 400, Err: fmt.Errorf("image has no band %s", b)}
		}
	}
	handle := schema.ExportHandle{ID: uuid.NewString(), Description: req.Description, Destination: req.Destination}
	m.mu.Lock()
	m.exports[handle.ID] = &exportTask{handle: handle}
	m.mu.Unlock()
	return handle, nil
}

// FailExport makes a pending export report failure on its next poll.
func (m *MemoryEngine) FailExport(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.exports[id]; ok {
		t.failed = true
	}
}

// ExportStatus implements contract.ComputeEngine.
func (m *MemoryEngine) ExportStatus(_ context.Context, handle schema.ExportHandle) (schema.ExportStatus, error) {
	m.count("export_status")
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.exports[handle.ID]
	if !ok {
		return schema.ExportStatus{}, &contract.RemoteComputeError{Operation: "export status", StatusCode: 404, Err: fmt.Errorf("unknown export %s", handle.ID)}
	}
	t.polls++
	status := schema.ExportStatus{Handle: t.handle}
	switch {
	case t.failed:
		status.State = schema.ExportFailed
		status.Error = "export rejected by destination"
	case m.ExportPollsToComplete < 0:
		status.State = schema.ExportRunning
	case t.polls > m.ExportPollsToComplete:
		status.State = schema.ExportCompleted
		status.URI = fmt.Sprintf("memory://exports/%s/%s.tif", t.handle.Destination, t.handle.Description)
	case t.polls == 1:
		status.State = schema.ExportPending
	default:
		status.State = schema.ExportRunning
	}
	return status, nil
}

// Pixels returns a copy of a band for inspection in tests.
func (m *MemoryEngine) Pixels(img schema.ImageRef, band string) ([]float64, error) {
	r, err := m.image(img)
	if err != nil {
		return nil, err
	}
	values, ok := r.data[band]
	if !ok {
		return nil, fmt.Errorf("image %s has no band %s", img, band)
	}
	return slices.Clone(values), nil
}

// Bands returns the band names of an image.
func (m *MemoryEngine) Bands(img schema.ImageRef) ([]string, error) {
	r, err := m.image(img)
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.bands), nil
}

func (m *MemoryEngine) image(ref schema.ImageRef) (*raster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[ref]
	if !ok {
		return nil, &contract.RemoteComputeError{Operation: "image lookup", StatusCode: 404, Err: fmt.Errorf("unknown image %s", ref)}
	}
	return img, nil
}

func (m *MemoryEngine) store(r *raster) schema.ImageRef {
	ref := schema.ImageRef(m.namespace + "/img/" + uuid.NewString())
	m.mu.Lock()
	m.images[ref] = r
	m.mu.Unlock()
	return ref
}

// inside tests the centre of grid cell col,row against the area.
func (m *MemoryEngine) inside(matcher *aoi.Matcher, col, row int) bool {
	bbox := matcher.BBox()
	lon := bbox[0] + (float64(col)+0.5)*(bbox[2]-bbox[0])/float64(m.grid)
	lat := bbox[3] - (float64(row)+0.5)*(bbox[3]-bbox[1])/float64(m.grid)
	return matcher.Contains(lon, lat)
}

// median of the valid observations, NaN when there are none.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
