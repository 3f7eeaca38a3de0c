package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/doc-toc/pkg/config"
	"github.com/Sriram-PR/doc-toc/pkg/filter"
	"github.com/Sriram-PR/doc-toc/pkg/orchestrate"
	"github.com/Sriram-PR/doc-toc/pkg/toc"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "toc":
		runTOC(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-sites":
		runListSites(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("doc-toc %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `doc-toc - Table of contents generator for static sites

Usage:
  doc-toc <command> [options]

Commands:
  build       Build configured sites, replacing the marker with a table of contents
  watch       Rebuild sites incrementally on a fixed interval
  toc         Print the table of contents of a single HTML document
  validate    Validate configuration file
  list-sites  List available site keys
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'doc-toc <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// registerFilters wires every template filter into a fresh registry.
// It is called once per process, after the config is validated.
func registerFilters(appCfg *config.AppConfig) (*filter.Registry, error) {
	reg := filter.NewRegistry()
	extractor := toc.NewExtractor(appCfg.PatternTimeout)
	if err := reg.Register(toc.FilterName, extractor.TOC); err != nil {
		return nil, err
	}
	return reg, nil
}

// setupLogger creates a configured logrus.Logger writing to out.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-toc validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *siteKey, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, siteKey string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	registry, err := registerFilters(appCfg)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	keys := orchestrate.GetAllSiteKeys(appCfg)
	if siteKey != "" {
		if _, ok := appCfg.Sites[siteKey]; !ok {
			fmt.Fprintf(stderr, "Error: site '%s' not found in config\n", siteKey)
			return 1
		}
		keys = []string{siteKey}
	}

	hasError := false
	for _, key := range keys {
		siteCfg := appCfg.Sites[key]
		siteWarnings, err := siteCfg.Validate()
		if err == nil {
			if name := config.GetEffectiveFilter(siteCfg, *appCfg); !hasFilter(registry, name) {
				err = fmt.Errorf("unknown filter '%s' (registered: %v)", name, registry.Names())
			}
		}
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		for _, w := range siteWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		if siteKey != "" {
			fmt.Fprintf(stdout, "OK: Site '%s' configuration is valid\n", key)
		} else {
			fmt.Fprintf(stdout, "OK: [%s]\n", key)
		}
	}
	if hasError {
		return 1
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

func hasFilter(reg *filter.Registry, name string) bool {
	_, ok := reg.Lookup(name)
	return ok
}

// runListSites handles the list-sites subcommand
func runListSites(args []string) {
	fs := flag.NewFlagSet("list-sites", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: doc-toc list-sites [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListSites(*configFile, os.Stdout, os.Stderr))
}

// doListSites lists sites and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListSites(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Sites in %s:\n\n", configPath)
	for _, key := range orchestrate.GetAllSiteKeys(appCfg) {
		site := appCfg.Sites[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Input: %s\n", site.InputDir)
		fmt.Fprintf(stdout, "    Output: %s\n", site.OutputDir)
		fmt.Fprintf(stdout, "    Filter: %s\n", config.GetEffectiveFilter(site, *appCfg))
		if site.Marker != "" {
			fmt.Fprintf(stdout, "    Marker: %s\n", site.Marker)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}
