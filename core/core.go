// Package core has core logic for compositing, change detection and aggregation.
package core

import (
	"context"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/aoi"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/engine"
	"github.com/huangsam/vegchange/internal/outwriter"
	"github.com/huangsam/vegchange/schema"
)

// ExecutorFunc defines the function signature for executing different commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// DemoBBox is the area used by the demo command when none is configured.
var DemoBBox = [4]float64{-70.65, -33.50, -70.55, -33.40}

// ExecuteAnalysis runs a full change analysis and prints the statistics.
// It serves as the main entry point for the 'analyze' command.
func ExecuteAnalysis(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	reg := registry.New()
	eng, err := engine.New(cfg, reg)
	if err != nil {
		return err
	}
	area, err := aoi.Resolve(ctx, cfg.Area, cfg.OverpassEndpoint)
	if err != nil {
		return err
	}

	if !shouldSuppressHeader(ctx) {
		outwriter.LogAnalysisHeader(cfg, area.Summary())
	}
	result, err := RunAnalysis(ctx, cfg, eng, reg, mgr, area, cliProgress(ctx))
	if err != nil {
		return err
	}

	if cfg.ChartFile != "" {
		if err := outwriter.WriteChartFile(cfg.ChartFile, result, cfg.Language); err != nil {
			contract.LogWarn("Failed to write chart", err)
		}
	}
	return outwriter.PrintAnalysisResult(result, cfg, time.Since(start))
}

// ExecuteDemo runs the analysis against the in-memory engine and its synthetic scenes.
func ExecuteDemo(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	demo := cfg.Clone()
	demo.EngineBackend = schema.MemoryEngine
	demo.Export = false
	if demo.Area.Source() == "" {
		bbox := DemoBBox
		demo.Area = contract.AreaSpec{BBox: &bbox}
	}
	return ExecuteAnalysis(ctx, demo, mgr)
}

// ExecutePreview prints a quick-look URL for one period composite.
func ExecutePreview(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, periodID string) error {
	reg := registry.New()
	eng, err := engine.New(cfg, reg)
	if err != nil {
		return err
	}
	area, err := aoi.Resolve(ctx, cfg.Area, cfg.OverpassEndpoint)
	if err != nil {
		return err
	}
	preview, err := BuildPreview(ctx, cfg, eng, reg, mgr, area, periodID)
	if err != nil {
		return err
	}
	return outwriter.PrintPreview(preview.Period, preview.URL, preview.Composite, cfg)
}

// ExecutePeriods prints the period catalogue. No engine is needed.
func ExecutePeriods(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	return outwriter.PrintPeriods(cfg.Catalogue, cfg)
}

// ExecuteIndices prints the registered indices and sensors. No engine is needed.
func ExecuteIndices(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	reg := registry.New()
	return outwriter.PrintIndices(reg.Indices(), reg.Sensors(), cfg)
}

// ExecuteExportStatus polls one export task until it finishes or timeout elapses.
func ExecuteExportStatus(ctx context.Context, cfg *contract.Config, taskID string, timeout time.Duration) error {
	eng, err := engine.New(cfg, registry.New())
	if err != nil {
		return err
	}
	handle := schema.ExportHandle{ID: taskID, Destination: cfg.ExportDestination}
	status, err := PollExport(ctx, eng, handle, cfg.ExportPollInterval, timeout)
	if err != nil {
		return err
	}
	return outwriter.PrintExportStatus(status, cfg)
}

// cliProgress prints stage progress to stderr unless headers are suppressed.
func cliProgress(ctx context.Context) ProgressFunc {
	if shouldSuppressHeader(ctx) {
		return nil
	}
	return outwriter.LogProgress
}
