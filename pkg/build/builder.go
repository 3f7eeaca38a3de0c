package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/doc-toc/pkg/config"
	"github.com/Sriram-PR/doc-toc/pkg/filter"
	"github.com/Sriram-PR/doc-toc/pkg/models"
	"github.com/Sriram-PR/doc-toc/pkg/render"
	"github.com/Sriram-PR/doc-toc/pkg/storage"
	"github.com/Sriram-PR/doc-toc/pkg/toc"
	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

// Builder runs a site's pages through a registered filter and writes the results
type Builder struct {
	appCfg  config.AppConfig
	siteCfg config.SiteConfig
	siteKey string
	log     *logrus.Entry

	filterName  string
	filterFn    filter.Func
	extractor   *toc.Extractor // Used instead of filterFn for the toc filter
	marker      string
	extensions  map[string]bool
	disallowed  []*regexp.Regexp
	incremental bool

	renderer *render.MarkdownRenderer
	store    storage.PageStore // nil disables state tracking
}

// NewBuilder resolves the effective site settings and looks up the site's filter.
// store may be nil, in which case every page is rebuilt and no state is recorded.
func NewBuilder(appCfg config.AppConfig, siteCfg config.SiteConfig, siteKey string, registry *filter.Registry, store storage.PageStore, log *logrus.Entry) (*Builder, error) {
	filterName := config.GetEffectiveFilter(siteCfg, appCfg)
	filterFn, ok := registry.Lookup(filterName)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' (registered: %v)", utils.ErrUnknownFilter, filterName, registry.Names())
	}

	disallowed, err := utils.CompileRegexPatterns(siteCfg.DisallowedPathPatterns)
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool)
	for _, ext := range config.GetEffectiveExtensions(siteCfg, appCfg) {
		exts[strings.ToLower(ext)] = true
	}

	incremental := config.GetEffectiveIncremental(siteCfg, appCfg)
	if incremental && store == nil {
		log.Warn("Incremental mode requested without a state store, rebuilding all pages")
		incremental = false
	}

	return &Builder{
		appCfg:      appCfg,
		siteCfg:     siteCfg,
		siteKey:     siteKey,
		log:         log.WithField("site", siteKey),
		filterName:  filterName,
		filterFn:    filterFn,
		extractor:   toc.NewExtractor(appCfg.PatternTimeout),
		marker:      config.GetEffectiveMarker(siteCfg, appCfg),
		extensions:  exts,
		disallowed:  disallowed,
		incremental: incremental,
		renderer:    newRenderer(siteCfg, appCfg),
		store:       store,
	}, nil
}

func newRenderer(siteCfg config.SiteConfig, appCfg config.AppConfig) *render.MarkdownRenderer {
	if config.GetEffectiveHighlightCode(siteCfg, appCfg) {
		return render.NewMarkdownRenderer(render.WithCodeHighlighting())
	}
	return render.NewMarkdownRenderer()
}

// Run processes every page of the site. Individual page failures are recorded
// in the report; only setup errors and context cancellation are returned.
func (b *Builder) Run(ctx context.Context) (*models.BuildReport, error) {
	report := &models.BuildReport{
		BuildID:        uuid.New().String(),
		SiteKey:        b.siteKey,
		Filter:         b.filterName,
		BuildStartTime: time.Now(),
	}
	b.log.Infof("Starting build %s: %s -> %s (filter: %s, incremental: %v)",
		report.BuildID, b.siteCfg.InputDir, b.siteCfg.OutputDir, b.filterName, b.incremental)

	pages, err := b.collectPages(ctx)
	if err != nil {
		return nil, err
	}
	b.log.Infof("Found %d pages to process", len(pages))

	results := make([]models.PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, b.appCfg.NumWorkers))

	for i, rel := range pages {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.processPage(rel)
			return nil
		})
	}
	waitErr := g.Wait()

	for _, res := range results {
		if res.SourcePath != "" { // Unset entries were never started
			report.Pages = append(report.Pages, res)
		}
	}
	report.Tally()
	report.BuildEndTime = time.Now()

	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		b.log.Warnf("Build interrupted after %d of %d pages: %v", len(report.Pages), len(pages), waitErr)
		return report, waitErr
	}

	b.log.Infof("Build finished in %v: %d written, %d skipped, %d failed",
		report.BuildEndTime.Sub(report.BuildStartTime), report.PagesWritten, report.PagesSkipped, report.PagesFailed)

	if config.GetEffectiveEnableReport(b.siteCfg, b.appCfg) {
		reportPath := filepath.Join(b.siteCfg.OutputDir, config.GetEffectiveReportFilename(b.siteCfg, b.appCfg))
		if err := WriteReport(report, reportPath); err != nil {
			b.log.Errorf("Failed to write build report: %v", err)
		} else {
			b.log.Infof("Build report saved to %s", reportPath)
		}
	}

	return report, nil
}

// collectPages walks the input dir and returns slash-separated relative paths in lexical order
func (b *Builder) collectPages(ctx context.Context) ([]string, error) {
	info, err := os.Stat(b.siteCfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: input_dir '%s': %w", utils.ErrFilesystem, b.siteCfg.InputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: input_dir '%s' is not a directory", utils.ErrFilesystem, b.siteCfg.InputDir)
	}

	var pages []string
	err = filepath.WalkDir(b.siteCfg.InputDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !b.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(b.siteCfg.InputDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if utils.MatchesAny(b.disallowed, rel) {
			b.log.Debugf("Skipping disallowed page: %s", rel)
			return nil
		}
		pages = append(pages, rel)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: walking '%s': %w", utils.ErrFilesystem, b.siteCfg.InputDir, err)
	}
	return pages, nil
}

// outputPathFor maps a source path to its output path; Markdown becomes HTML
func outputPathFor(rel string) string {
	if render.IsMarkdown(rel) {
		return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
	}
	return rel
}

// processPage builds one page and records the outcome
func (b *Builder) processPage(rel string) models.PageResult {
	pageLog := b.log.WithField("page", rel)
	result := models.PageResult{
		SourcePath: rel,
		OutputPath: outputPathFor(rel),
	}
	now := time.Now()

	src, err := os.ReadFile(filepath.Join(b.siteCfg.InputDir, filepath.FromSlash(rel)))
	if err != nil {
		return b.fail(pageLog, result, fmt.Errorf("%w: reading page: %w", utils.ErrFilesystem, err), now)
	}
	result.ContentHash = utils.CalculateSHA256(src)
	outPath := filepath.Join(b.siteCfg.OutputDir, filepath.FromSlash(result.OutputPath))

	if prev := b.unchangedEntry(pageLog, rel, result.ContentHash, outPath); prev != nil {
		result.Status = models.PageStatusSkipped
		result.HeadingCount = prev.HeadingCount
		result.HasMarker = prev.HasMarker
		pageLog.Debug("Source unchanged, skipping")
		b.record(pageLog, rel, &models.PageEntry{
			Status:       models.PageStatusSkipped,
			ContentHash:  result.ContentHash,
			HeadingCount: prev.HeadingCount,
			HasMarker:    prev.HasMarker,
			ProcessedAt:  prev.ProcessedAt,
			LastAttempt:  now,
		})
		return result
	}

	page := string(src)
	if render.IsMarkdown(rel) {
		page, err = b.renderer.Render(src)
		if err != nil {
			return b.fail(pageLog, result, err, now)
		}
	}

	list, headings := b.applyFilter(pageLog, page)
	result.HeadingCount = headings
	result.HasMarker = strings.Contains(page, b.marker)
	if result.HasMarker {
		page = strings.ReplaceAll(page, b.marker, list)
	} else {
		pageLog.Debugf("No marker '%s' in page, writing it unchanged", b.marker)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return b.fail(pageLog, result, fmt.Errorf("%w: creating output dir: %w", utils.ErrFilesystem, err), now)
	}
	if err := os.WriteFile(outPath, []byte(page), 0644); err != nil {
		return b.fail(pageLog, result, fmt.Errorf("%w: writing page: %w", utils.ErrFilesystem, err), now)
	}

	result.Status = models.PageStatusSuccess
	pageLog.Debugf("Wrote %s (%d headings)", result.OutputPath, result.HeadingCount)
	b.record(pageLog, rel, &models.PageEntry{
		Status:       models.PageStatusSuccess,
		ContentHash:  result.ContentHash,
		HeadingCount: result.HeadingCount,
		HasMarker:    result.HasMarker,
		ProcessedAt:  now,
		LastAttempt:  now,
	})
	return result
}

// applyFilter returns the generated list and the number of headings it links to.
// Only the toc filter counts headings; other filters report zero.
func (b *Builder) applyFilter(pageLog *logrus.Entry, page string) (string, int) {
	if b.filterName != toc.FilterName {
		return b.filterFn(page), 0
	}
	entries, err := b.extractor.Extract(page)
	if err != nil {
		pageLog.Warnf("Heading scan incomplete, listing %d headings: %v", len(entries), err)
	}
	return toc.Render(entries), len(entries)
}

// unchangedEntry returns the stored entry when the page can be skipped
func (b *Builder) unchangedEntry(pageLog *logrus.Entry, rel, hash, outPath string) *models.PageEntry {
	if !b.incremental {
		return nil
	}
	status, entry, err := b.store.CheckPageStatus(rel)
	if err != nil {
		pageLog.Warnf("State lookup failed, rebuilding page: %v", err)
		return nil
	}
	if status != models.PageStatusSuccess && status != models.PageStatusSkipped {
		return nil
	}
	if entry == nil || entry.ContentHash != hash {
		return nil
	}
	if _, err := os.Stat(outPath); err != nil {
		return nil
	}
	return entry
}

func (b *Builder) fail(pageLog *logrus.Entry, result models.PageResult, err error, now time.Time) models.PageResult {
	result.Status = models.PageStatusFailure
	result.ErrorType = utils.CategorizeError(err)
	result.Error = err.Error()
	pageLog.Warnf("Page failed (%s): %v", result.ErrorType, err)
	b.record(pageLog, result.SourcePath, &models.PageEntry{
		Status:      models.PageStatusFailure,
		ErrorType:   result.ErrorType,
		ContentHash: result.ContentHash,
		LastAttempt: now,
	})
	return result
}

// record stores page state; failures here never fail the page itself
func (b *Builder) record(pageLog *logrus.Entry, rel string, entry *models.PageEntry) {
	if b.store == nil {
		return
	}
	if err := b.store.UpdatePage(rel, entry); err != nil {
		pageLog.Errorf("Failed to record page state: %v", err)
	}
}
