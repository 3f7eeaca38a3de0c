package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-toc/pkg/config"
	"github.com/Sriram-PR/doc-toc/pkg/filter"
	"github.com/Sriram-PR/doc-toc/pkg/toc"
)

const (
	serverName    = "doc-toc"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Registry   *filter.Registry
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes the filter registry and site builds as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
	extractor  *toc.Extractor
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("filter Registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	s := &Server{
		mcpServer:  server.NewMCPServer(serverName, serverVersion, server.WithLogging()),
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
		extractor:  toc.NewExtractor(cfg.AppConfig.PatternTimeout),
	}
	s.registerTools()
	return s, nil
}

type toolEntry struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

func (s *Server) registerTools() {
	tools := []toolEntry{
		{
			Tool: mcp.NewTool("toc",
				mcp.WithDescription("Build an ordered table of contents from the h2 headings of an HTML fragment"),
				mcp.WithString("html",
					mcp.Required(),
					mcp.Description("HTML text to scan for <h2> headings"),
				),
			),
			Handler: s.handleTOC,
		},
		{
			Tool: mcp.NewTool("list_filters",
				mcp.WithDescription("List the names of all registered template filters"),
			),
			Handler: s.handleListFilters,
		},
		{
			Tool: mcp.NewTool("apply_filter",
				mcp.WithDescription("Apply a registered template filter to an input string"),
				mcp.WithString("name",
					mcp.Required(),
					mcp.Description("Registered filter name (e.g. 'toc')"),
				),
				mcp.WithString("input",
					mcp.Required(),
					mcp.Description("Input text passed to the filter"),
				),
			),
			Handler: s.handleApplyFilter,
		},
		{
			Tool: mcp.NewTool("list_sites",
				mcp.WithDescription("List all configured sites"),
			),
			Handler: s.handleListSites,
		},
		{
			Tool: mcp.NewTool("build_site",
				mcp.WithDescription("Start a background build of a configured site. Returns immediately with a job ID."),
				mcp.WithString("site_key",
					mcp.Required(),
					mcp.Description("Site key from the config file"),
				),
				mcp.WithBoolean("incremental",
					mcp.Description("Skip pages whose source is unchanged since the last build"),
				),
			),
			Handler: s.handleBuildSite,
		},
		{
			Tool: mcp.NewTool("get_job_status",
				mcp.WithDescription("Get the status of a build job"),
				mcp.WithString("job_id",
					mcp.Required(),
					mcp.Description("The job ID returned by build_site"),
				),
			),
			Handler: s.handleGetJobStatus,
		},
		{
			Tool: mcp.NewTool("get_build_report",
				mcp.WithDescription("Read the last saved build report of a site"),
				mcp.WithString("site_key",
					mcp.Required(),
					mcp.Description("Site key from the config file"),
				),
			),
			Handler: s.handleGetBuildReport,
		},
	}
	for _, t := range tools {
		s.mcpServer.AddTool(t.Tool, t.Handler)
	}
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		return server.NewSSEServer(s.mcpServer).Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels any running builds
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
