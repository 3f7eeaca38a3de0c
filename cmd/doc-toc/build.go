package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-toc/pkg/orchestrate"
)

type buildOptions struct {
	configPath  string
	siteKeys    []string
	allSites    bool
	incremental bool
	full        bool
	logLevel    string
}

// runBuild handles the build subcommand
func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key from config (single site)")
	sites := fs.String("sites", "", "Comma-separated site keys")
	allSites := fs.Bool("all-sites", false, "Build all configured sites")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	incremental := fs.Bool("incremental", false, "Skip pages whose source is unchanged since the last build")
	full := fs.Bool("full", false, "Force a full rebuild (ignore incremental settings)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doc-toc build [options]

Build one or more configured sites. Every page containing the marker gets
the output of the site's filter in its place.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	opts := buildOptions{
		configPath:  *configFile,
		allSites:    *allSites,
		incremental: *incremental,
		full:        *full,
		logLevel:    *logLevel,
	}
	if *siteKey != "" {
		opts.siteKeys = append(opts.siteKeys, *siteKey)
	}
	for _, k := range strings.Split(*sites, ",") {
		if k = strings.TrimSpace(k); k != "" {
			opts.siteKeys = append(opts.siteKeys, k)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "Received signal: %v. Initiating graceful shutdown...\n", sig)
		cancel()

		select {
		case sig = <-sigChan:
			fmt.Fprintf(os.Stderr, "Received second signal: %v. Forcing exit.\n", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			fmt.Fprintln(os.Stderr, "Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	os.Exit(doBuild(ctx, opts, os.Stdout, os.Stderr))
}

// doBuild builds the selected sites and returns the exit code.
// Cancellation of ctx stops the current build gracefully (exit 0).
func doBuild(ctx context.Context, opts buildOptions, stdout, stderr io.Writer) int {
	log := setupLogger(opts.logLevel, stderr)

	if opts.incremental && opts.full {
		fmt.Fprintln(stderr, "Error: -incremental and -full are mutually exclusive")
		return 1
	}

	log.Infof("Loading configuration from %s", opts.configPath)
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

	orch := orchestrate.NewOrchestrator(appCfg, registry, log.WithField("component", "build"))
	switch {
	case opts.incremental:
		orch.SetIncremental(true)
		log.Info("Incremental mode enabled via CLI flag")
	case opts.full:
		orch.SetIncremental(false)
		log.Info("Full rebuild forced via CLI flag")
	}

	if appCfg.GlobalBuildTimeout > 0 {
		log.Infof("Setting global build timeout: %v", appCfg.GlobalBuildTimeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, appCfg.GlobalBuildTimeout)
		defer cancel()
	}

	exitCode := 0
	for _, res := range orch.Run(ctx, keys) {
		if code := reportSiteResult(res, log, stdout, stderr); code != 0 {
			exitCode = code
		}
	}
	return exitCode
}

// reportSiteResult prints a site's summary line and maps its outcome to an exit code
func reportSiteResult(res orchestrate.SiteResult, log *logrus.Logger, stdout, stderr io.Writer) int {
	if res.Report != nil {
		fmt.Fprintf(stdout, "[%s] build %s: %d written, %d skipped, %d failed\n",
			res.SiteKey, res.Report.BuildID, res.Report.PagesWritten, res.Report.PagesSkipped, res.Report.PagesFailed)
	}

	switch {
	case res.Cancelled():
		log.Warnf("[%s] Build cancelled gracefully.", res.SiteKey)
		return 0
	case errors.Is(res.Error, context.DeadlineExceeded):
		log.Errorf("[%s] Build timed out (global timeout).", res.SiteKey)
		return 1
	case res.Error != nil:
		fmt.Fprintf(stderr, "Error: [%s] build failed: %v\n", res.SiteKey, res.Error)
		return 1
	case res.Report.PagesFailed > 0:
		log.Errorf("[%s] %d page(s) failed", res.SiteKey, res.Report.PagesFailed)
		return 1
	}

	log.Infof("[%s] Build completed successfully.", res.SiteKey)
	return 0
}
