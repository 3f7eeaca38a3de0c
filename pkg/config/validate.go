package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 4")
		c.NumWorkers = 4
	}

	// MaxParallelSites
	if c.MaxParallelSites < 0 {
		warnings = append(warnings, "max_parallel_sites cannot be negative, defaulting to 1")
	}
	if c.MaxParallelSites <= 0 {
		c.MaxParallelSites = 1
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './toc_state'")
		c.StateDir = "./toc_state"
	}

	// PatternTimeout
	if c.PatternTimeout < 0 {
		warnings = append(warnings, "pattern_timeout cannot be negative, using default")
		c.PatternTimeout = 0
	}
	if c.PatternTimeout == 0 {
		c.PatternTimeout = 5 * time.Second
	}

	// GlobalBuildTimeout
	if c.GlobalBuildTimeout < 0 {
		warnings = append(warnings, "global_build_timeout cannot be negative, disabling timeout")
		c.GlobalBuildTimeout = 0
	}

	c.Extensions = normalizeExtensions(c.Extensions)

	// Report filename
	if c.EnableReport && c.ReportFilename == "" {
		warnings = append(warnings,
			"Global 'enable_report' is true but 'report_filename' is empty. "+
				"Defaulting to '"+DefaultReportFilename+"'")
		c.ReportFilename = DefaultReportFilename
	}

	return warnings, nil // AppConfig validation never fails fatally
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	// Required: InputDir
	if c.InputDir == "" {
		return nil, fmt.Errorf("%w: site needs input_dir", utils.ErrConfigValidation)
	}

	// Required: OutputDir
	if c.OutputDir == "" {
		return nil, fmt.Errorf("%w: site needs output_dir", utils.ErrConfigValidation)
	}

	// Writing over the sources would feed generated lists back into the next build
	if filepath.Clean(c.InputDir) == filepath.Clean(c.OutputDir) {
		return nil, fmt.Errorf("%w: output_dir must differ from input_dir ('%s')", utils.ErrConfigValidation, c.InputDir)
	}

	if _, err := utils.CompileRegexPatterns(c.DisallowedPathPatterns); err != nil {
		return nil, err
	}

	if c.Marker != "" && strings.TrimSpace(c.Marker) == "" {
		warnings = append(warnings, "Site marker is only whitespace, falling back to the global marker")
		c.Marker = ""
	}

	c.Extensions = normalizeExtensions(c.Extensions)

	return warnings, nil
}

// normalizeExtensions lowercases extensions and ensures a leading dot
func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return exts
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
