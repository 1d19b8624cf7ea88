package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/vegchange/core"
	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/aoi"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/internal/engine"
	"github.com/huangsam/vegchange/internal/outwriter"
	"github.com/huangsam/vegchange/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
	reg     *registry.Registry
	jobs    *core.JobStore
}

// requestConfig clones the base config and applies the analysis parameters of request.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	req := contract.AnalysisRequest{
		Periods:    request.GetString("periods", ""),
		Reference:  request.GetString("reference", ""),
		Indices:    request.GetString("indices", ""),
		Thresholds: request.GetString("thresholds", ""),
		BBox:       request.GetString("bbox", ""),
		GeoJSON:    request.GetString("geojson", ""),
		OSMWay:     int64(request.GetInt("osm_way", 0)),
		Buffer:     request.GetFloat("buffer", 0),
		Language:   request.GetString("language", ""),
	}
	if err := contract.RevalidateAnalysis(cfg, h.reg, req); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runner builds the analysis for cfg. Each run gets its own engine.
func (h *toolHandler) runner(cfg *contract.Config) core.JobRunner {
	return func(ctx context.Context, progress core.ProgressFunc) (*schema.AnalysisResult, error) {
		eng, err := engine.New(cfg, h.reg)
		if err != nil {
			return nil, err
		}
		area, err := aoi.Resolve(ctx, cfg.Area, cfg.OverpassEndpoint)
		if err != nil {
			return nil, err
		}
		result, err := core.RunAnalysis(core.WithSuppressHeader(ctx), cfg, eng, h.reg, h.mgr, area, progress)
		if err != nil || cfg.Language == schema.English {
			return result, err
		}
		return result.Localized(cfg.Language), nil
	}
}

func (h *toolHandler) handleAnalyzeArea(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid analysis parameters: %v", err)), nil
	}

	result, err := h.runner(cfg)(ctx, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleStartAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid analysis parameters: %v", err)), nil
	}

	job := h.jobs.Submit(ctx, cfg.ParamsMap(), h.runner(cfg))
	jsonData, _ := json.MarshalIndent(job, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetJob(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("job_id", "")
	if id == "" {
		return mcp.NewToolResultError("job_id is required"), nil
	}
	job, err := h.jobs.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	jsonData, _ := json.MarshalIndent(job, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleCancelJob(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("job_id", "")
	if id == "" {
		return mcp.NewToolResultError("job_id is required"), nil
	}
	job, err := h.jobs.Cancel(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	jsonData, _ := json.MarshalIndent(job, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListJobs(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := h.jobs.List(request.GetInt("limit", 0))
	jsonData, _ := json.MarshalIndent(jobs, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListPeriods(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := outwriter.WritePeriods(&buf, h.baseCfg.Catalogue, &contract.Config{Output: schema.JSONOut}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (h *toolHandler) handleListIndices(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := outwriter.WriteIndices(&buf, h.reg.Indices(), h.reg.Sensors(), &contract.Config{Output: schema.JSONOut}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// classInfo is one change class as returned by get_class_info.
type classInfo struct {
	Class int    `json:"class"`
	Label string `json:"label"`
	Color string `json:"color"`
}

func (h *toolHandler) handleGetClassInfo(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang := h.baseCfg.Language
	if s := request.GetString("language", ""); s != "" {
		parsed, err := contract.ParseLanguage(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		lang = parsed
	}

	classes := make([]classInfo, 0, len(schema.AllChangeClasses))
	for _, c := range schema.AllChangeClasses {
		classes = append(classes, classInfo{
			Class: int(c),
			Label: schema.GetLabel(c, lang),
			Color: schema.ChangeClassInfo[c].Color,
		})
	}
	jsonData, _ := json.MarshalIndent(classes, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
