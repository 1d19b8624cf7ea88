package core

import (
	"context"
	"time"

	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// Run statuses recorded in the analysis store.
const (
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

// RunAnalysis runs one analysis end to end. It records the run in the analysis store when
// one is configured and submits exports when cfg.Export is set. Tracking failures never
// fail the analysis.
func RunAnalysis(ctx context.Context, cfg *contract.Config, engine contract.ComputeEngine, reg *registry.Registry, mgr contract.CacheManager, area contract.AreaOfInterest, progress ProgressFunc) (*schema.AnalysisResult, error) {
	// --- 0. Begin Analysis Tracking (if configured) ---
	var analysisStore contract.AnalysisStore
	if mgr != nil {
		analysisStore = mgr.GetAnalysisStore()
	}
	if analysisStore != nil {
		params := cfg.ParamsMap()
		params["area_fingerprint"] = area.Ref().Fingerprint
		analysisID, err := analysisStore.BeginAnalysis(time.Now(), params)
		if err != nil {
			contract.LogWarn("Analysis tracking initialization failed", err)
		} else if analysisID > 0 {
			ctx = withAnalysisID(ctx, analysisID)
		}
	}

	// --- 1. Pipeline ---
	result, err := NewOrchestrator(cfg, engine, reg, mgr).WithProgress(progress).Run(ctx, area)

	// --- 2. End Analysis Tracking ---
	if analysisID, ok := getAnalysisID(ctx); ok && analysisStore != nil {
		finishTracking(analysisStore, analysisID, result, err)
	}
	if err != nil {
		return nil, err
	}

	// --- 3. Exports ---
	if cfg.Export {
		handles, exportErr := SubmitExports(ctx, engine, result, area.Ref(), cfg.ExportDestination, cfg.Scale)
		if exportErr != nil {
			contract.LogWarn("Some exports could not be submitted", exportErr)
		}
		result.Exports = handles
	}
	return result, nil
}

func finishTracking(store contract.AnalysisStore, analysisID int64, result *schema.AnalysisResult, runErr error) {
	status := runStatusCompleted
	pairs := 0
	if runErr != nil {
		status = runStatusFailed
	} else {
		pairs = len(result.Statistics)
		if err := store.RecordStatistics(analysisID, schema.FlattenStatistics(result)); err != nil {
			contract.LogWarn("Failed to record class statistics", err)
		}
	}
	if err := store.EndAnalysis(analysisID, time.Now(), pairs, status); err != nil {
		contract.LogWarn("Failed to finalize analysis tracking", err)
	}
}
