package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"golang.org/x/sync/errgroup"
)

// Progress fractions at stage boundaries.
const (
	progressCompositingStart = 0.05
	progressCompositingSpan  = 0.35
	progressIndexingStart    = 0.45
	progressIndexingSpan     = 0.15
	progressDetectingStart   = 0.65
	progressDetectingSpan    = 0.20
	progressAggregating      = 0.90
	progressDone             = 1.0
)

// ProgressFunc receives stage transitions. Fractions never decrease within one run.
type ProgressFunc func(stage schema.Stage, fraction float64, message string)

// Pair is one (reference, comparison) period pair.
type Pair struct {
	Reference  string
	Comparison string
}

// Key returns the pair key used in results.
func (p Pair) Key() string { return schema.PairKey(p.Reference, p.Comparison) }

// Pairs lists the comparisons of an analysis: the reference against every other period,
// plus each consecutive period pair when sequential is set. Duplicates are dropped.
func Pairs(periods []string, reference string, sequential bool) []Pair {
	var pairs []Pair
	seen := make(map[Pair]struct{})
	add := func(p Pair) {
		if p.Reference == p.Comparison {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}
	for _, p := range periods {
		add(Pair{Reference: reference, Comparison: p})
	}
	if sequential {
		for i := 1; i < len(periods); i++ {
			add(Pair{Reference: periods[i-1], Comparison: periods[i]})
		}
	}
	return pairs
}

// progressTracker forwards progress while keeping it monotonic.
type progressTracker struct {
	mu   sync.Mutex
	last float64
	fn   ProgressFunc
}

func (p *progressTracker) report(stage schema.Stage, fraction float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = max(p.last, fraction)
	if p.fn != nil {
		p.fn(stage, p.last, message)
	}
}

// Orchestrator runs one analysis through the pipeline stages. Any component error moves
// it to the failed stage and no partial result is returned.
type Orchestrator struct {
	cfg      *contract.Config
	engine   contract.ComputeEngine
	registry *registry.Registry
	mgr      contract.CacheManager
	progress ProgressFunc
}

// NewOrchestrator creates an orchestrator. mgr may be nil to disable caching.
func NewOrchestrator(cfg *contract.Config, engine contract.ComputeEngine, reg *registry.Registry, mgr contract.CacheManager) *Orchestrator {
	return &Orchestrator{cfg: cfg, engine: engine, registry: reg, mgr: mgr}
}

// WithProgress sets the progress callback.
func (o *Orchestrator) WithProgress(fn ProgressFunc) *Orchestrator {
	o.progress = fn
	return o
}

// Run executes every stage for area and returns the complete result.
func (o *Orchestrator) Run(ctx context.Context, area contract.AreaOfInterest) (*schema.AnalysisResult, error) {
	start := time.Now()
	tracker := &progressTracker{fn: o.progress}
	fail := func(err error) (*schema.AnalysisResult, error) {
		tracker.report(schema.StageFailed, 0, err.Error())
		return nil, err
	}

	// --- Validating ---
	tracker.report(schema.StageValidating, 0, "validating configuration")
	if err := ValidateAnalysis(o.cfg, o.registry); err != nil {
		return fail(&contract.StageError{Stage: schema.StageValidating, Err: err})
	}
	ref := area.Ref()
	periods := o.cfg.PeriodIDs()
	pairs := Pairs(periods, o.cfg.Reference, o.cfg.Sequential)

	durable := durableTier(o.mgr)
	compositor := NewCompositor(o.cfg, o.engine, o.registry, durable)
	indexer := &IndexEngine{Engine: o.engine, Registry: o.registry, Tier: durable}
	detector := &DeltaEngine{Engine: o.engine, Tier: durable}
	aggregator := &Aggregator{Engine: o.engine, Tier: durable}

	// --- Compositing ---
	tracker.report(schema.StageCompositing, progressCompositingStart, fmt.Sprintf("building %d composites", len(periods)))
	composites, err := o.buildComposites(ctx, compositor, ref, tracker)
	if err != nil {
		return fail(err)
	}

	// --- Indexing ---
	tracker.report(schema.StageIndexing, progressIndexingStart, "computing spectral indices")
	for i, p := range o.cfg.Periods {
		withIdx, err := indexer.Apply(ctx, composites[p.ID], o.cfg.Indices)
		if err != nil {
			return fail(&contract.StageError{Stage: schema.StageIndexing, Period: p.ID, Err: err})
		}
		composites[p.ID] = withIdx
		tracker.report(schema.StageIndexing, progressIndexingStart+progressIndexingSpan*float64(i+1)/float64(len(o.cfg.Periods)),
			fmt.Sprintf("indices ready for %s", p.ID))
	}

	// --- Detecting ---
	tracker.report(schema.StageDetecting, progressDetectingStart, fmt.Sprintf("detecting change for %d pairs", len(pairs)))
	deltas := make(map[string]map[string]schema.DeltaResult, len(pairs))
	steps, done := len(pairs)*len(o.cfg.Indices), 0
	for _, pair := range pairs {
		byIndex := make(map[string]schema.DeltaResult, len(o.cfg.Indices))
		for _, index := range o.cfg.Indices {
			d, err := detector.Detect(ctx, composites[pair.Reference], composites[pair.Comparison], index, o.cfg.ThresholdsFor(index))
			if err != nil {
				return fail(&contract.StageError{Stage: schema.StageDetecting, Period: pair.Reference, Comparison: pair.Comparison, Index: index, Err: err})
			}
			byIndex[index] = d
			done++
			tracker.report(schema.StageDetecting, progressDetectingStart+progressDetectingSpan*float64(done)/float64(max(steps, 1)),
				fmt.Sprintf("%s %s", pair.Key(), index))
		}
		deltas[pair.Key()] = byIndex
	}

	// --- Aggregating ---
	tracker.report(schema.StageAggregating, progressAggregating, "aggregating class statistics")
	statistics := make(map[string]map[string]schema.ClassStatistics, len(pairs))
	for _, pair := range pairs {
		byIndex := make(map[string]schema.ClassStatistics, len(o.cfg.Indices))
		for _, index := range o.cfg.Indices {
			stats, err := aggregator.Aggregate(ctx, deltas[pair.Key()][index], ref, o.cfg.Scale)
			if err != nil {
				return fail(&contract.StageError{Stage: schema.StageAggregating, Period: pair.Reference, Comparison: pair.Comparison, Index: index, Err: err})
			}
			byIndex[index] = stats
		}
		statistics[pair.Key()] = byIndex
	}

	tracker.report(schema.StageDone, progressDone, "analysis complete")
	return &schema.AnalysisResult{
		Reference:  o.cfg.Reference,
		Periods:    periods,
		Indices:    slices.Clone(o.cfg.Indices),
		Area:       area.Summary(),
		Composites: composites,
		Deltas:     deltas,
		Statistics: statistics,
		StartedAt:  start,
		Duration:   time.Since(start),
	}, nil
}

// buildComposites builds every period concurrently, bounded by the configured workers.
// Periods share no state; same-key builds are serialized by the durable tier.
func (o *Orchestrator) buildComposites(ctx context.Context, compositor *Compositor, area schema.AreaRef, tracker *progressTracker) (map[string]schema.Composite, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.cfg.Workers, 1))

	var mu sync.Mutex
	composites := make(map[string]schema.Composite, len(o.cfg.Periods))
	total := len(o.cfg.Periods)

	for _, period := range o.cfg.Periods {
		g.Go(func() error {
			c, err := compositor.Build(gctx, area, period, o.cfg.CloudThreshold)
			if err != nil {
				return &contract.StageError{Stage: schema.StageCompositing, Period: period.ID, Err: err}
			}
			mu.Lock()
			composites[period.ID] = c
			done := len(composites)
			mu.Unlock()
			tracker.report(schema.StageCompositing, progressCompositingStart+progressCompositingSpan*float64(done)/float64(total),
				fmt.Sprintf("composite ready for %s (%d scenes)", period.ID, c.SceneCount))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return composites, nil
}

// ValidateAnalysis rechecks the invariants an analysis relies on. It never touches an
// engine, so a bad configuration fails before any remote call.
func ValidateAnalysis(cfg *contract.Config, reg *registry.Registry) error {
	if len(cfg.Periods) < 2 {
		return contract.NewConfigurationError("periods", "at least two periods are required")
	}
	if !slices.Contains(cfg.PeriodIDs(), cfg.Reference) {
		return contract.NewConfigurationError("reference", "'%s' is not one of the selected periods", cfg.Reference)
	}
	if len(cfg.Indices) == 0 {
		return contract.NewConfigurationError("indices", "at least one index is required")
	}
	if cfg.Scale <= 0 {
		return contract.NewConfigurationError("scale", "must be positive")
	}
	if cfg.CloudThreshold < 0 || cfg.CloudThreshold > 100 {
		return contract.NewConfigurationError("cloud-threshold", "must be between 0 and 100")
	}
	for _, p := range cfg.Periods {
		for _, s := range p.Sensors {
			if _, err := reg.Sensor(s); err != nil {
				return err
			}
		}
	}
	for _, index := range cfg.Indices {
		if _, err := reg.Index(index); err != nil {
			return err
		}
		if err := cfg.ThresholdsFor(index).Validate(); err != nil {
			return contract.NewConfigurationError("thresholds", "%s: %v", index, err)
		}
	}
	return nil
}
