package config

import "time"

// SiteConfig holds configuration specific to a single site build
type SiteConfig struct {
	InputDir               string   `yaml:"input_dir"`
	OutputDir              string   `yaml:"output_dir"`
	Marker                 string   `yaml:"marker,omitempty"`                   // Placeholder replaced by the filter output
	Filter                 string   `yaml:"filter,omitempty"`                   // Registered filter name
	Extensions             []string `yaml:"extensions,omitempty"`               // Page file extensions to process
	DisallowedPathPatterns []string `yaml:"disallowed_path_patterns,omitempty"` // Regex patterns for relative paths to skip
	Incremental            *bool    `yaml:"incremental,omitempty"`
	EnableReport           *bool    `yaml:"enable_report,omitempty"`
	ReportFilename         string   `yaml:"report_filename,omitempty"`
	HighlightCode          *bool    `yaml:"highlight_code,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	NumWorkers         int                   `yaml:"num_workers"`
	MaxParallelSites   int                   `yaml:"max_parallel_sites,omitempty"` // Sites built at once by build -all-sites and watch
	StateDir           string                `yaml:"state_dir"`
	DefaultMarker      string                `yaml:"default_marker,omitempty"`
	DefaultFilter      string                `yaml:"default_filter,omitempty"`
	Extensions         []string              `yaml:"extensions,omitempty"`
	Incremental        bool                  `yaml:"incremental,omitempty"`
	PatternTimeout     time.Duration         `yaml:"pattern_timeout,omitempty"`      // Per-match limit for heading patterns
	GlobalBuildTimeout time.Duration         `yaml:"global_build_timeout,omitempty"` // 0 = no timeout
	EnableReport       bool                  `yaml:"enable_report,omitempty"`
	ReportFilename     string                `yaml:"report_filename,omitempty"`
	HighlightCode      bool                  `yaml:"highlight_code,omitempty"` // Syntax-highlight fenced code in Markdown pages
	Sites              map[string]SiteConfig `yaml:"sites"`
}

const (
	DefaultMarker         = "<!-- toc -->"
	DefaultFilterName     = "toc"
	DefaultReportFilename = "toc_report.yaml"
)

// DefaultExtensions are the page types processed when none are configured
var DefaultExtensions = []string{".html", ".htm", ".md"}

// GetEffectiveMarker determines the placeholder for a site
func GetEffectiveMarker(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.Marker != "" {
		return siteCfg.Marker
	}
	if appCfg.DefaultMarker != "" {
		return appCfg.DefaultMarker
	}
	return DefaultMarker
}

// GetEffectiveFilter determines which registered filter a site uses
func GetEffectiveFilter(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.Filter != "" {
		return siteCfg.Filter
	}
	if appCfg.DefaultFilter != "" {
		return appCfg.DefaultFilter
	}
	return DefaultFilterName
}

// GetEffectiveExtensions determines the page extensions for a site
func GetEffectiveExtensions(siteCfg SiteConfig, appCfg AppConfig) []string {
	if len(siteCfg.Extensions) > 0 {
		return siteCfg.Extensions
	}
	if len(appCfg.Extensions) > 0 {
		return appCfg.Extensions
	}
	return DefaultExtensions
}

// GetEffectiveIncremental determines whether unchanged pages are skipped
func GetEffectiveIncremental(siteCfg SiteConfig, appCfg AppConfig) bool {
	if siteCfg.Incremental != nil {
		return *siteCfg.Incremental
	}
	return appCfg.Incremental
}

// GetEffectiveEnableReport determines if the YAML build report is written
func GetEffectiveEnableReport(siteCfg SiteConfig, appCfg AppConfig) bool {
	if siteCfg.EnableReport != nil {
		return *siteCfg.EnableReport
	}
	return appCfg.EnableReport
}

// GetEffectiveHighlightCode determines if Markdown code blocks are syntax highlighted
func GetEffectiveHighlightCode(siteCfg SiteConfig, appCfg AppConfig) bool {
	if siteCfg.HighlightCode != nil {
		return *siteCfg.HighlightCode
	}
	return appCfg.HighlightCode
}

// GetEffectiveReportFilename determines the filename for the build report.
// Site config (if non-empty) overrides global.
func GetEffectiveReportFilename(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.ReportFilename != "" {
		return siteCfg.ReportFilename
	}
	if appCfg.ReportFilename != "" {
		return appCfg.ReportFilename
	}
	return DefaultReportFilename
}
