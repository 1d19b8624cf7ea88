package core

import (
	"context"
	"fmt"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/expr"
	"github.com/huangsam/vegchange/schema"
)

// relativeFloor replaces a zero baseline when computing relative change.
const relativeFloor = 0.001

// DeltaEngine computes and classifies index differences between two composites.
type DeltaEngine struct {
	Engine contract.ComputeEngine
	Tier   contract.Tier
}

// DeltaBandName is the continuous delta band of an index.
func DeltaBandName(index string) string { return "d" + index }

// ClassBandName is the classified delta band of an index.
func ClassBandName(index string) string { return "d" + index + "_class" }

// RelativeBandName is the percent change band of an index.
func RelativeBandName(index string) string { return "rel_d" + index }

// DeltaExprs returns the band expressions for after minus before, its class and its
// relative change. The inputs are aliased "before" and "after".
func DeltaExprs(index string, t schema.Thresholds) []expr.NamedExpr {
	before := expr.BandOf("before", index)
	d := expr.Sub(expr.BandOf("after", index), before)
	return []expr.NamedExpr{
		{Name: DeltaBandName(index), Expr: d},
		{Name: ClassBandName(index), Expr: expr.Classify(d, t)},
		{Name: RelativeBandName(index), Expr: expr.Mul(expr.Div(d, expr.NonZeroOr(before, relativeFloor)), expr.Const(100))},
	}
}

// Detect computes after[index] - before[index] and its classification. No-data in either
// input stays no-data in every output band.
func (e *DeltaEngine) Detect(ctx context.Context, before, after schema.Composite, index string, t schema.Thresholds) (schema.DeltaResult, error) {
	if err := t.Validate(); err != nil {
		return schema.DeltaResult{}, contract.NewConfigurationError("thresholds", "%s: %v", index, err)
	}
	for _, c := range []schema.Composite{before, after} {
		if !c.HasBand(index) {
			return schema.DeltaResult{}, fmt.Errorf("composite for period '%s' has no '%s' band", c.Period, index)
		}
	}

	key := cacheKey("delta", e.Engine.Namespace(), before.Image, after.Image, index, t)
	img, err := getOrCompute(ctx, e.Tier, key, func(ctx context.Context) (schema.ImageRef, error) {
		return e.Engine.Evaluate(ctx, contract.EvaluateRequest{
			Inputs: map[string]schema.ImageRef{"before": before.Image, "after": after.Image},
			Bands:  DeltaExprs(index, t),
		})
	})
	if err != nil {
		return schema.DeltaResult{}, err
	}

	return schema.DeltaResult{
		Reference:    before.Period,
		Comparison:   after.Period,
		Index:        index,
		Image:        img,
		DeltaBand:    DeltaBandName(index),
		ClassBand:    ClassBandName(index),
		RelativeBand: RelativeBandName(index),
		Thresholds:   t,
	}, nil
}
