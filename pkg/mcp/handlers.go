package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/doc-toc/pkg/build"
	"github.com/Sriram-PR/doc-toc/pkg/config"
	"github.com/Sriram-PR/doc-toc/pkg/orchestrate"
	"github.com/Sriram-PR/doc-toc/pkg/toc"
	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

// handleTOC handles the toc tool
func (s *Server) handleTOC(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	html, err := request.RequireString("html")
	if err != nil {
		return mcp.NewToolResultError("html parameter is required"), nil
	}

	entries, extractErr := s.extractor.Extract(html)
	result := map[string]interface{}{
		"toc":     toc.Render(entries),
		"entries": entries,
		"count":   len(entries),
	}
	if extractErr != nil {
		s.log.Warnf("toc tool returned partial entries: %v", extractErr)
		result["warning"] = extractErr.Error()
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListFilters handles the list_filters tool
func (s *Server) handleListFilters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := s.cfg.Registry.Names()
	result := map[string]interface{}{
		"filters": names,
		"total":   len(names),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleApplyFilter handles the apply_filter tool
func (s *Server) handleApplyFilter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name parameter is required"), nil
	}
	input, err := request.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError("input parameter is required"), nil
	}

	output, err := s.cfg.Registry.Apply(name, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v (available filters: %v)", err, s.cfg.Registry.Names())), nil
	}

	result := map[string]interface{}{
		"name":   name,
		"output": output,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListSites handles the list_sites tool
func (s *Server) handleListSites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appCfg := s.cfg.AppConfig
	sites := make([]map[string]interface{}, 0, len(appCfg.Sites))

	for _, key := range orchestrate.GetAllSiteKeys(s.cfg.AppConfig) {
		siteCfg := appCfg.Sites[key]
		siteInfo := map[string]interface{}{
			"key":         key,
			"input_dir":   siteCfg.InputDir,
			"output_dir":  siteCfg.OutputDir,
			"filter":      config.GetEffectiveFilter(siteCfg, *appCfg),
			"marker":      config.GetEffectiveMarker(siteCfg, *appCfg),
			"incremental": config.GetEffectiveIncremental(siteCfg, *appCfg),
		}

		if report, err := build.LoadReport(s.reportPath(siteCfg)); err == nil {
			siteInfo["last_built"] = report.BuildEndTime.Format(time.RFC3339)
		}
		if s.jobManager.IsRunning(key) {
			siteInfo["status"] = "running"
		}
		sites = append(sites, siteInfo)
	}

	result := map[string]interface{}{
		"sites":       sites,
		"config_path": s.cfg.ConfigPath,
		"total_sites": len(sites),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleBuildSite handles the build_site tool
func (s *Server) handleBuildSite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	siteKey := request.GetString("site_key", "")
	if siteKey == "" {
		return mcp.NewToolResultError("site_key parameter is required"), nil
	}

	siteCfg, exists := s.cfg.AppConfig.Sites[siteKey]
	if !exists {
		return mcp.NewToolResultError(fmt.Sprintf("site '%s' not found. Available sites: %v", siteKey, orchestrate.GetAllSiteKeys(s.cfg.AppConfig))), nil
	}
	incremental := request.GetBool("incremental", config.GetEffectiveIncremental(siteCfg, *s.cfg.AppConfig))

	job, created := s.jobManager.CreateJob(siteKey, incremental)
	if !created {
		result := map[string]interface{}{
			"status":   "already_running",
			"message":  "A build is already in progress for this site",
			"job_id":   job.ID,
			"site_key": siteKey,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runBuildJob(job.ID, siteKey, incremental)

	result := map[string]interface{}{
		"status":      "started",
		"message":     "Build started successfully",
		"job_id":      job.ID,
		"site_key":    siteKey,
		"incremental": incremental,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":        job.ID,
		"site_key":      job.SiteKey,
		"status":        job.Status,
		"started_at":    job.StartedAt.Format(time.RFC3339),
		"pages_written": job.PagesWritten,
		"pages_skipped": job.PagesSkipped,
		"pages_failed":  job.PagesFailed,
		"incremental":   job.Incremental,
	}
	if job.BuildID != "" {
		result["build_id"] = job.BuildID
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetBuildReport handles the get_build_report tool
func (s *Server) handleGetBuildReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	siteKey := request.GetString("site_key", "")
	if siteKey == "" {
		return mcp.NewToolResultError("site_key parameter is required"), nil
	}
	siteCfg, exists := s.cfg.AppConfig.Sites[siteKey]
	if !exists {
		return mcp.NewToolResultError(fmt.Sprintf("site '%s' not found", siteKey)), nil
	}

	report, err := build.LoadReport(s.reportPath(siteCfg))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no build report for site '%s': %v", siteKey, err)), nil
	}

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// runBuildJob runs a site build in the background
func (s *Server) runBuildJob(jobID, siteKey string, incremental bool) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.Context(jobID)

	if timeout := s.cfg.AppConfig.GlobalBuildTimeout; timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, timeout)
		defer cancel()
	}

	orch := orchestrate.NewOrchestrator(s.cfg.AppConfig, s.cfg.Registry, s.log.WithField("job_id", jobID))
	orch.SetIncremental(incremental)
	result := orch.BuildSite(jobCtx, siteKey)
	s.jobManager.RecordReport(jobID, result.Report)

	switch {
	case result.Cancelled():
		s.jobManager.UpdateStatus(jobID, JobStatusCancelled, "")
	case result.Error != nil:
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, fmt.Sprintf("%s: %v", utils.CategorizeError(result.Error), result.Error))
	case result.Report.PagesFailed > 0:
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, fmt.Sprintf("%d page(s) failed", result.Report.PagesFailed))
	default:
		s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
	}
}

func (s *Server) reportPath(siteCfg config.SiteConfig) string {
	return filepath.Join(siteCfg.OutputDir, config.GetEffectiveReportFilename(siteCfg, *s.cfg.AppConfig))
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
