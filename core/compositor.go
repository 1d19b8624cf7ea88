package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// Compositor builds one median composite per period through the durable tier.
type Compositor struct {
	Engine       contract.ComputeEngine
	Registry     *registry.Registry
	Tier         contract.Tier
	Scale        float64
	MinImages    int
	BuildTimeout time.Duration
}

// NewCompositor wires a compositor from the analysis configuration.
func NewCompositor(cfg *contract.Config, engine contract.ComputeEngine, reg *registry.Registry, tier contract.Tier) *Compositor {
	return &Compositor{
		Engine:       engine,
		Registry:     reg,
		Tier:         tier,
		Scale:        cfg.Scale,
		MinImages:    cfg.MinImages,
		BuildTimeout: cfg.BuildTimeout,
	}
}

// compositeKey identifies a composite by area, period window, sensor set and filter settings.
func (c *Compositor) compositeKey(area schema.AreaRef, period schema.PeriodWindow, cloud float64) string {
	return cacheKey("composite",
		c.Engine.Namespace(),
		area.Fingerprint,
		period.ID,
		period.Start.Format(time.DateOnly),
		period.End.Format(time.DateOnly),
		period.Sensors,
		cloud,
		c.Scale,
	)
}

// Build returns the composite of period over area, building it on a cache miss.
// Every sensor of the period is pooled before the median so no sensor dominates.
func (c *Compositor) Build(ctx context.Context, area schema.AreaRef, period schema.PeriodWindow, cloud float64) (schema.Composite, error) {
	key := c.compositeKey(area, period, cloud)
	return getOrCompute(ctx, c.Tier, key, func(ctx context.Context) (schema.Composite, error) {
		return c.build(ctx, area, period, cloud)
	})
}

func (c *Compositor) build(ctx context.Context, area schema.AreaRef, period schema.PeriodWindow, cloud float64) (schema.Composite, error) {
	var cancel context.CancelFunc = func() {}
	if c.BuildTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.BuildTimeout)
	}
	defer cancel()

	composite, err := c.reduce(ctx, area, period, cloud)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return schema.Composite{}, &contract.TimeoutError{Operation: fmt.Sprintf("composite for period '%s'", period.ID), Limit: c.BuildTimeout}
	}
	return composite, err
}

func (c *Compositor) reduce(ctx context.Context, area schema.AreaRef, period schema.PeriodWindow, cloud float64) (schema.Composite, error) {
	var sources []contract.ReduceSource
	total := 0
	for _, sensorID := range period.Sensors {
		sensor, err := c.Registry.Sensor(sensorID)
		if err != nil {
			return schema.Composite{}, err
		}
		scenes, err := c.Engine.ListScenes(ctx, contract.SceneQuery{
			Sensor:        sensorID,
			Area:          area,
			Start:         period.Start,
			End:           period.End,
			CloudProperty: sensor.CloudProperty,
			MaxCloud:      cloud,
		})
		if err != nil {
			return schema.Composite{}, err
		}

		// The engine filters too; re-check so the threshold holds for any engine.
		ids := make([]string, 0, len(scenes))
		for _, s := range scenes {
			if s.CloudCover <= cloud {
				ids = append(ids, s.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}

		mask, err := c.Registry.Mask(sensorID)
		if err != nil {
			return schema.Composite{}, err
		}
		bands, err := c.Registry.Harmonize(sensorID)
		if err != nil {
			return schema.Composite{}, err
		}
		sources = append(sources, contract.ReduceSource{Sensor: sensorID, SceneIDs: ids, Mask: mask, Bands: bands})
		total += len(ids)
	}

	if total == 0 {
		return schema.Composite{}, &contract.EmptyCollectionError{
			Period:         period.ID,
			Sensors:        slices.Clone(period.Sensors),
			CloudThreshold: cloud,
		}
	}
	if c.MinImages > 0 && total < c.MinImages {
		contract.LogWarn(fmt.Sprintf("Period '%s' has only %d scenes below %g%% cloud", period.ID, total, cloud),
			fmt.Errorf("fewer than %d images; the median may be noisy", c.MinImages))
	}

	img, err := c.Engine.Reduce(ctx, contract.ReduceRequest{Sources: sources, Area: area, Scale: c.Scale})
	if err != nil {
		return schema.Composite{}, err
	}

	bands := make([]string, len(schema.CanonicalBands))
	for i, b := range schema.CanonicalBands {
		bands[i] = string(b)
	}
	return schema.Composite{
		Period:          period.ID,
		Sensors:         slices.Clone(period.Sensors),
		Image:           img,
		Bands:           bands,
		SceneCount:      total,
		AreaFingerprint: area.Fingerprint,
		CloudThreshold:  cloud,
	}, nil
}
