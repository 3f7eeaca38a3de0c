package watch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-toc/pkg/config"
	"github.com/Sriram-PR/doc-toc/pkg/filter"
	"github.com/Sriram-PR/doc-toc/pkg/orchestrate"
)

const (
	minTickInterval = time.Second
	maxTickInterval = 10 * time.Minute

	// Editors emit bursts of events per save; rebuild once the burst settles
	changeDebounce = 300 * time.Millisecond
)

// Scheduler rebuilds sites incrementally every interval until its context ends.
// Unchanged pages are skipped, so a quiet site costs one directory walk per run.
type Scheduler struct {
	appCfg       *config.AppConfig
	orch         *orchestrate.Orchestrator
	siteKeys     []string
	interval     time.Duration
	log          *logrus.Entry
	stateManager *StateManager

	watchFiles bool
}

// NewScheduler expects appCfg to be validated and siteKeys to exist in it
func NewScheduler(appCfg *config.AppConfig, registry *filter.Registry, siteKeys []string, interval time.Duration, log *logrus.Entry) *Scheduler {
	orch := orchestrate.NewOrchestrator(appCfg, registry, log)
	orch.SetIncremental(true)
	return &Scheduler{
		appCfg:       appCfg,
		orch:         orch,
		siteKeys:     siteKeys,
		interval:     interval,
		log:          log,
		stateManager: NewStateManager(appCfg.StateDir),
	}
}

// WatchFiles additionally rebuilds a site shortly after any file under its
// input_dir changes. Must be called before Run.
func (s *Scheduler) WatchFiles() {
	s.watchFiles = true
}

// Run blocks until ctx is done. Builds never overlap: a tick or file change
// that arrives while a run is in progress is handled after it finishes.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %v", s.interval)
	}
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	// Channels stay nil, and never fire, when file watching is off
	var fw *fsnotify.Watcher
	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if s.watchFiles {
		var err error
		if fw, err = s.newFileWatcher(); err != nil {
			return err
		}
		defer fw.Close()
		events, watchErrs = fw.Events, fw.Errors
	}

	s.log.Infof("Watching %d sites, rebuilding every %s (on change: %v)", len(s.siteKeys), FormatInterval(s.interval), s.watchFiles)
	s.logSchedule()

	s.runSites(ctx, s.dueSites())

	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()

	debounce := time.NewTimer(changeDebounce)
	debounce.Stop()
	changed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			return nil
		case <-ticker.C:
			s.runSites(ctx, s.dueSites())
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			key := s.siteForChange(fw, ev)
			if key == "" {
				continue
			}
			s.log.Debugf("Change in %s: %s", key, ev)
			changed[key] = true
			debounce.Reset(changeDebounce)
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.log.Warnf("File watcher error: %v", err)
		case <-debounce.C:
			keys := make([]string, 0, len(changed))
			for k := range changed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			clear(changed)
			s.log.Infof("Sources changed, rebuilding: %v", keys)
			s.runSites(ctx, keys)
		}
	}
}

func (s *Scheduler) runSites(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}

	s.log.Infof("Rebuilding %d sites: %v", len(keys), keys)
	for _, result := range s.orch.Run(ctx, keys) {
		// An interrupted build is retried on the next start rather than waiting a full interval
		if result.Cancelled() {
			continue
		}
		s.stateManager.RecordResult(result)
	}
	if err := s.stateManager.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
}

func (s *Scheduler) dueSites() []string {
	var due []string
	for _, key := range s.siteKeys {
		if s.stateManager.ShouldRun(key, s.interval) {
			due = append(due, key)
		}
	}
	return due
}

// tickInterval checks for due sites ten times per interval, bounded to [1s, 10m]
func (s *Scheduler) tickInterval() time.Duration {
	return min(max(s.interval/10, minTickInterval), maxTickInterval)
}

func (s *Scheduler) logSchedule() {
	for _, key := range s.siteKeys {
		state, ok := s.stateManager.GetSiteState(key)
		if !ok {
			s.log.Infof("  %s: never built, building now", key)
			continue
		}
		status := "success"
		if !state.LastRunSuccess {
			status = "failed"
		}
		s.log.Infof("  %s: last build %s (%s, %d written), next at %s",
			key, state.LastRunTime.Format(time.RFC3339), status, state.PagesWritten,
			s.stateManager.GetNextRunTime(key, s.interval).Format(time.RFC3339))
	}
}

func (s *Scheduler) logNextRun() {
	var nextKey string
	var next time.Time
	for _, key := range s.siteKeys {
		t := s.stateManager.GetNextRunTime(key, s.interval)
		if nextKey == "" || t.Before(next) {
			nextKey, next = key, t
		}
	}
	if nextKey == "" {
		return
	}
	s.log.Infof("Next build: %s in %v (at %s)", nextKey, max(time.Until(next), 0).Round(time.Second), next.Format("15:04:05"))
}

// SiteStatus is a site's watch state plus its next scheduled build
type SiteStatus struct {
	SiteState
	SiteKey     string
	NextRunTime time.Time
	NeverRun    bool
}

// GetStatus returns the status of every watched site, keyed by site
func (s *Scheduler) GetStatus() map[string]SiteStatus {
	status := make(map[string]SiteStatus, len(s.siteKeys))
	for _, key := range s.siteKeys {
		state, ok := s.stateManager.GetSiteState(key)
		status[key] = SiteStatus{
			SiteState:   state,
			SiteKey:     key,
			NextRunTime: s.stateManager.GetNextRunTime(key, s.interval),
			NeverRun:    !ok,
		}
	}
	return status
}

// FormatInterval renders a duration using the largest units that fit, e.g. 1d12h or 1h30m
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		hours, mins := int(d.Hours()), int(d.Minutes())%60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days, hours := int(d.Hours())/24, int(d.Hours())%24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval accepts time.ParseDuration syntax plus a leading day count ("7d", "1d12h").
// The result must be positive.
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, err = parseDays(s)
		if err != nil {
			return 0, fmt.Errorf("invalid interval format: %q (examples: 30s, 15m, 1h, 7d)", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %q", s)
	}
	return d, nil
}

func parseDays(s string) (time.Duration, error) {
	dayStr, rest, found := strings.Cut(s, "d")
	if !found {
		return 0, fmt.Errorf("no day component")
	}
	days, err := strconv.Atoi(dayStr)
	if err != nil {
		return 0, err
	}
	d := time.Duration(days) * 24 * time.Hour
	if rest != "" {
		extra, err := time.ParseDuration(rest)
		if err != nil {
			return 0, err
		}
		d += extra
	}
	return d, nil
}
