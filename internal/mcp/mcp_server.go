// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/vegchange/core"
	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// analysisOptions are the request parameters shared by analyze_area and start_analysis.
func analysisOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("bbox", mcp.Description("Bounding box as 'west,south,east,north' in degrees.")),
		mcp.WithString("geojson", mcp.Description("Inline GeoJSON geometry, Feature or FeatureCollection.")),
		mcp.WithNumber("osm_way", mcp.Description("OpenStreetMap way id whose polygon is the area of interest.")),
		mcp.WithNumber("buffer", mcp.Description("Buffer around the area in metres (0-10000).")),
		mcp.WithString("periods", mcp.Description("Comma-separated period ids, e.g. '1990s,2010s,present'. Defaults to the server configuration.")),
		mcp.WithString("reference", mcp.Description("Reference period; must be one of the selected periods.")),
		mcp.WithString("indices", mcp.Description("Comma-separated spectral indices, e.g. 'ndvi,nbr'.")),
		mcp.WithString("thresholds", mcp.Description("Threshold overrides as 'index:strong_loss,moderate_loss,moderate_gain,strong_gain'.")),
		mcp.WithString("language", mcp.Description("Language of class labels in the result: 'en' or 'es'.")),
	}
}

// NewMCPServer initializes and configures the vegchange MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager, jobs *core.JobStore) *server.MCPServer {
	s := server.NewMCPServer(
		"Vegetation Change Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		reg:     registry.New(),
		jobs:    jobs,
	}

	// --- 1. Tool: analyze_area ---
	s.AddTool(mcp.NewTool("analyze_area",
		append([]mcp.ToolOption{
			mcp.WithDescription("Detect vegetation change for an area and return per-class statistics. Blocks until the analysis finishes."),
		}, analysisOptions()...)...,
	), h.handleAnalyzeArea)

	// --- 2. Tool: start_analysis ---
	s.AddTool(mcp.NewTool("start_analysis",
		append([]mcp.ToolOption{
			mcp.WithDescription("Start a vegetation change analysis in the background and return its job id."),
		}, analysisOptions()...)...,
	), h.handleStartAnalysis)

	// --- 3. Tool: get_job ---
	s.AddTool(mcp.NewTool("get_job",
		mcp.WithDescription("Get the status, progress and result of a background analysis."),
		mcp.WithString("job_id", mcp.Description("Job id returned by start_analysis."), mcp.Required()),
	), h.handleGetJob)

	// --- 4. Tool: cancel_job ---
	s.AddTool(mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a background analysis that has not started running yet."),
		mcp.WithString("job_id", mcp.Description("Job id returned by start_analysis."), mcp.Required()),
	), h.handleCancelJob)

	// --- 5. Tool: list_jobs ---
	s.AddTool(mcp.NewTool("list_jobs",
		mcp.WithDescription("List background analyses, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of jobs to return (default 50).")),
	), h.handleListJobs)

	// --- 6. Tool: list_periods ---
	s.AddTool(mcp.NewTool("list_periods",
		mcp.WithDescription("List the period windows that can be compared."),
	), h.handleListPeriods)

	// --- 7. Tool: list_indices ---
	s.AddTool(mcp.NewTool("list_indices",
		mcp.WithDescription("List the spectral indices and sensors the server knows."),
	), h.handleListIndices)

	// --- 8. Tool: get_class_info ---
	s.AddTool(mcp.NewTool("get_class_info",
		mcp.WithDescription("Describe the five change classes with their labels and map colors."),
		mcp.WithString("language", mcp.Description("Label language: 'en' (default) or 'es'.")),
	), h.handleGetClassInfo)

	return s
}

// StartMCPServer starts the vegchange MCP server on stdio. Running jobs are awaited on return.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	jobs := core.NewJobStore()
	defer jobs.Wait()
	s := NewMCPServer(baseCfg, mgr, jobs)
	return server.ServeStdio(s)
}
