package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/doc-toc/pkg/build"
	"github.com/Sriram-PR/doc-toc/pkg/config"
	"github.com/Sriram-PR/doc-toc/pkg/filter"
	"github.com/Sriram-PR/doc-toc/pkg/models"
	"github.com/Sriram-PR/doc-toc/pkg/storage"
)

const dbGCInterval = 10 * time.Minute

// SiteResult contains the outcome of building a single site
type SiteResult struct {
	SiteKey  string
	Report   *models.BuildReport // nil when the build never started
	Error    error
	Duration time.Duration
}

// Success reports whether the build ran to completion without failed pages
func (r SiteResult) Success() bool {
	return r.Error == nil && r.Report != nil && r.Report.PagesFailed == 0
}

// Cancelled reports whether the build stopped because its context was cancelled
func (r SiteResult) Cancelled() bool {
	return errors.Is(r.Error, context.Canceled)
}

// Orchestrator builds several sites, at most MaxParallelSites at a time.
// Each site gets its own state DB; the filter registry is shared.
type Orchestrator struct {
	appCfg   *config.AppConfig
	registry *filter.Registry
	log      *logrus.Entry
	sem      *semaphore.Weighted

	incremental *bool // Overrides every site's incremental setting when set
}

// NewOrchestrator expects appCfg to be validated already
func NewOrchestrator(appCfg *config.AppConfig, registry *filter.Registry, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		appCfg:   appCfg,
		registry: registry,
		log:      log,
		sem:      semaphore.NewWeighted(int64(max(1, appCfg.MaxParallelSites))),
	}
}

// SetIncremental forces incremental (true) or full (false) builds for all sites
func (o *Orchestrator) SetIncremental(incremental bool) {
	o.incremental = &incremental
}

// Run builds all sites and returns their results in the order of siteKeys
func (o *Orchestrator) Run(ctx context.Context, siteKeys []string) []SiteResult {
	startTime := time.Now()
	if len(siteKeys) > 1 {
		o.log.Infof("Starting build of %d sites (%d at a time): %v", len(siteKeys), max(1, o.appCfg.MaxParallelSites), siteKeys)
	}

	results := make([]SiteResult, len(siteKeys))
	var wg sync.WaitGroup
	for i, key := range siteKeys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.sem.Acquire(ctx, 1); err != nil {
				results[i] = SiteResult{SiteKey: key, Error: err}
				return
			}
			defer o.sem.Release(1)
			results[i] = o.BuildSite(ctx, key)
		}()
	}
	wg.Wait()

	if len(siteKeys) > 1 {
		o.logSummary(results, time.Since(startTime))
	}
	return results
}

// BuildSite validates one site's config, opens its state DB and runs the build
func (o *Orchestrator) BuildSite(ctx context.Context, siteKey string) (result SiteResult) {
	startTime := time.Now()
	result.SiteKey = siteKey
	siteLog := o.log.WithField("site", siteKey)
	defer func() { result.Duration = time.Since(startTime) }()

	siteCfg, exists := o.appCfg.Sites[siteKey]
	if !exists {
		result.Error = fmt.Errorf("site '%s' not found in configuration", siteKey)
		return result
	}
	warnings, err := siteCfg.Validate()
	if err != nil {
		result.Error = fmt.Errorf("site '%s' configuration error: %w", siteKey, err)
		return result
	}
	for _, w := range warnings {
		siteLog.Warn(w)
	}
	if o.incremental != nil {
		siteCfg.Incremental = o.incremental
	}
	incremental := config.GetEffectiveIncremental(siteCfg, *o.appCfg)

	// Full builds start from empty state but still record it for later incremental runs
	store, err := storage.NewBadgerStore(ctx, o.appCfg.StateDir, siteKey, incremental, siteLog)
	if err != nil {
		result.Error = err
		return result
	}
	defer store.Close()

	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go store.RunGC(gcCtx, dbGCInterval)

	builder, err := build.NewBuilder(*o.appCfg, siteCfg, siteKey, o.registry, store, siteLog)
	if err != nil {
		result.Error = fmt.Errorf("failed to create builder for '%s': %w", siteKey, err)
		return result
	}

	result.Report, result.Error = builder.Run(ctx)
	if result.Error != nil {
		siteLog.Errorf("Build stopped: %v", result.Error)
	}
	return result
}

func (o *Orchestrator) logSummary(results []SiteResult, totalDuration time.Duration) {
	o.log.Infof("Built %d sites in %v", len(results), totalDuration.Round(time.Millisecond))

	succeeded := 0
	for _, r := range results {
		status := "FAILED"
		if r.Success() {
			status = "SUCCESS"
			succeeded++
		}
		written, skipped, failed := 0, 0, 0
		if r.Report != nil {
			written, skipped, failed = r.Report.PagesWritten, r.Report.PagesSkipped, r.Report.PagesFailed
		}
		o.log.Infof("  %s: %s - %d written, %d skipped, %d failed in %v",
			r.SiteKey, status, written, skipped, failed, r.Duration.Round(time.Millisecond))
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}
	o.log.Infof("Total: %d sites (%d success, %d failed)", len(results), succeeded, len(results)-succeeded)
}

// ValidateSiteKeys checks that all provided site keys exist in the config
func ValidateSiteKeys(appCfg *config.AppConfig, siteKeys []string) error {
	for _, key := range siteKeys {
		if _, exists := appCfg.Sites[key]; !exists {
			return fmt.Errorf("site '%s' not found. Available sites: %v", key, GetAllSiteKeys(appCfg))
		}
	}
	return nil
}

// GetAllSiteKeys returns all site keys from the config, sorted
func GetAllSiteKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
