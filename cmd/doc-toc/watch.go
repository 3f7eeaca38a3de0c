package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sriram-PR/doc-toc/pkg/orchestrate"
	"github.com/Sriram-PR/doc-toc/pkg/watch"
)

type watchOptions struct {
	configPath string
	siteKeys   []string
	allSites   bool
	interval   string
	onChange   bool
	logLevel   string
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key from config (single site)")
	sites := fs.String("sites", "", "Comma-separated site keys")
	allSites := fs.Bool("all-sites", false, "Watch all configured sites")
	interval := fs.String("interval", "1h", "Rebuild interval (e.g. 30s, 15m, 1h, 7d)")
	onChange := fs.Bool("on-change", false, "Also rebuild a site as soon as files under its input_dir change")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doc-toc watch [options]

Rebuild sites incrementally on a fixed interval until interrupted.
Schedule state is kept in <state_dir>/watch_state.json across restarts.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	opts := watchOptions{
		configPath: *configFile,
		allSites:   *allSites,
		interval:   *interval,
		onChange:   *onChange,
		logLevel:   *logLevel,
	}
	if *siteKey != "" {
		opts.siteKeys = append(opts.siteKeys, *siteKey)
	}
	for _, k := range strings.Split(*sites, ",") {
		if k = strings.TrimSpace(k); k != "" {
			opts.siteKeys = append(opts.siteKeys, k)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(doWatch(ctx, opts, os.Stdout, os.Stderr))
}

// doWatch runs the scheduler until ctx is cancelled and returns the exit code
func doWatch(ctx context.Context, opts watchOptions, stdout, stderr io.Writer) int {
	log := setupLogger(opts.logLevel, stderr)

	interval, err := watch.ParseInterval(opts.interval)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	appCfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	keys := opts.siteKeys
	if opts.allSites {
		keys = orchestrate.GetAllSiteKeys(appCfg)
	}
	if len(keys) == 0 {
		fmt.Fprintln(stderr, "Error: one of -site, -sites or -all-sites is required")
		return 1
	}
	if err := orchestrate.ValidateSiteKeys(appCfg, keys); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	registry, err := registerFilters(appCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	scheduler := watch.NewScheduler(appCfg, registry, keys, interval, log.WithField("component", "watch"))
	if opts.onChange {
		scheduler.WatchFiles()
	}
	if err := scheduler.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	for _, key := range keys {
		st := scheduler.GetStatus()[key]
		if st.NeverRun {
			fmt.Fprintf(stdout, "[%s] not built\n", key)
			continue
		}
		fmt.Fprintf(stdout, "[%s] last build %s: %d written, %d skipped, %d failed\n",
			key, st.BuildID, st.PagesWritten, st.PagesSkipped, st.PagesFailed)
	}
	return 0
}
