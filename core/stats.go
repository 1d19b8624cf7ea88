package core

import (
	"context"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
	"gonum.org/v1/gonum/floats"
)

// squareMetersPerHectare converts pixel area to hectares.
const squareMetersPerHectare = 10000.0

// Aggregator turns classified bands into per-class statistics.
type Aggregator struct {
	Engine contract.ComputeEngine
	Tier   contract.Tier
}

// Aggregate counts the classified band of d inside area and converts the counts to hectares
// and percentages at the given scale.
func (a *Aggregator) Aggregate(ctx context.Context, d schema.DeltaResult, area schema.AreaRef, scale float64) (schema.ClassStatistics, error) {
	key := cacheKey("histogram", a.Engine.Namespace(), d.Image, d.ClassBand, area.Fingerprint, scale)
	hist, err := getOrCompute(ctx, a.Tier, key, func(ctx context.Context) (schema.Histogram, error) {
		return a.Engine.Histogram(ctx, contract.HistogramRequest{
			Image: d.Image,
			Band:  d.ClassBand,
			Area:  area,
			Scale: scale,
		})
	})
	if err != nil {
		return schema.ClassStatistics{}, err
	}
	return ComputeStatistics(hist, scale), nil
}

// ComputeStatistics converts a class histogram into statistics. Values outside the five
// classes are ignored. When nothing is valid, every row is zero.
func ComputeStatistics(hist schema.Histogram, scale float64) schema.ClassStatistics {
	pixelHa := scale * scale / squareMetersPerHectare

	counts := make([]float64, len(schema.AllChangeClasses))
	for i, c := range schema.AllChangeClasses {
		counts[i] = float64(hist[int(c)])
	}
	areas := make([]float64, len(counts))
	copy(areas, counts)
	floats.Scale(pixelHa, areas)

	validPixels := floats.Sum(counts)
	validArea := floats.Sum(areas)

	stats := schema.ClassStatistics{
		Classes:     make([]schema.ClassStat, len(schema.AllChangeClasses)),
		ValidPixels: int64(validPixels),
		ValidAreaHa: validArea,
		Scale:       scale,
	}
	for i, c := range schema.AllChangeClasses {
		row := schema.ClassStat{
			Class:      c,
			Label:      schema.GetPlainLabel(c),
			Color:      schema.ChangeClassInfo[c].Color,
			PixelCount: int64(counts[i]),
			AreaHa:     areas[i],
		}
		if validArea > 0 {
			row.Percent = areas[i] / validArea * 100
		}
		stats.Classes[i] = row
	}
	return stats
}
