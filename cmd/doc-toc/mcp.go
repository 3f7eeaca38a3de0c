package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-toc/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doc-toc mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  doc-toc mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  doc-toc mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  toc               Build a table of contents from HTML
  list_filters      List registered template filters
  apply_filter      Apply a registered filter to an input string
  list_sites        List all configured sites
  build_site        Start a background build for a site
  get_job_status    Check a build job
  get_build_report  Read the last build report of a site
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doMcpServer(*configFile, *transport, *port, *logLevel, os.Stdout, os.Stderr))
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, transport string, port int, logLevel string, stdout, stderr io.Writer) int {
	log := logrus.New()
	log.SetOutput(stderr) // MCP protocol uses stdout, logs go to stderr
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", logLevel)
		return 1
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error validating config: %v\n", err)
		return 1
	}

	registry, err := registerFilters(appCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error registering filters: %v\n", err)
		return 1
	}

	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Registry:   registry,
		Transport:  transport,
		Port:       port,
		Logger:     log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)

	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}
	return 0
}
