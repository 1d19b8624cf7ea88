package core

import (
	"context"
	"slices"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// IndexEngine appends spectral index bands to composites.
type IndexEngine struct {
	Engine   contract.ComputeEngine
	Registry *registry.Registry
	Tier     contract.Tier
}

// Apply returns a copy of c with every requested index appended in request order.
// Bands that already exist are skipped. The input composite is never modified.
func (e *IndexEngine) Apply(ctx context.Context, c schema.Composite, names []string) (schema.Composite, error) {
	var missing []string
	for _, name := range names {
		if _, err := e.Registry.Index(name); err != nil {
			return schema.Composite{}, err
		}
		if c.HasBand(name) || slices.Contains(missing, name) {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return c, nil
	}

	exprs, err := e.Registry.IndexExprs(missing)
	if err != nil {
		return schema.Composite{}, err
	}

	key := cacheKey("indices", e.Engine.Namespace(), c.Image, missing)
	img, err := getOrCompute(ctx, e.Tier, key, func(ctx context.Context) (schema.ImageRef, error) {
		return e.Engine.Evaluate(ctx, contract.EvaluateRequest{
			Inputs: map[string]schema.ImageRef{"": c.Image},
			Bands:  exprs,
			Append: true,
		})
	})
	if err != nil {
		return schema.Composite{}, err
	}

	out := c
	out.Image = img
	out.Bands = append(slices.Clone(c.Bands), missing...)
	out.Sensors = slices.Clone(c.Sensors)
	return out, nil
}
