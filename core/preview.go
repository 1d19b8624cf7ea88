package core

import (
	"context"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// Preview is a quick-look of one period composite.
type Preview struct {
	Period    string           `json:"period"`
	Composite schema.Composite `json:"composite"`
	URL       string           `json:"url"`
}

// trueColor renders canonical red, green and blue at typical land reflectance.
var trueColor = schema.VisParams{Bands: []string{"red", "green", "blue"}, Min: 0, Max: 0.3, Width: 1024}

// BuildPreview returns a quick-look URL of period. The composite goes through the durable
// tier and the URL through the ephemeral tier, so URLs are reused until their TTL expires.
func BuildPreview(ctx context.Context, cfg *contract.Config, engine contract.ComputeEngine, reg *registry.Registry, mgr contract.CacheManager, area contract.AreaOfInterest, periodID string) (*Preview, error) {
	period, ok := schema.FindPeriod(cfg.Catalogue, periodID)
	if !ok {
		return nil, contract.NewConfigurationError("period", "unknown period '%s'", periodID)
	}
	for _, s := range period.Sensors {
		if _, err := reg.Sensor(s); err != nil {
			return nil, err
		}
	}

	ref := area.Ref()
	compositor := NewCompositor(cfg, engine, reg, durableTier(mgr))
	composite, err := compositor.Build(ctx, ref, period, cfg.CloudThreshold)
	if err != nil {
		return nil, &contract.StageError{Stage: schema.StageCompositing, Period: period.ID, Err: err}
	}

	key := cacheKey("quicklook", engine.Namespace(), composite.Image, trueColor)
	url, err := getOrCompute(ctx, ephemeralTier(mgr), key, func(ctx context.Context) (string, error) {
		return engine.QuickLook(ctx, composite.Image, trueColor)
	})
	if err != nil {
		return nil, err
	}
	return &Preview{Period: period.ID, Composite: composite, URL: url}, nil
}
