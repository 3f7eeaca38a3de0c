package models

import "time"

// PageEntry stores the result of processing a page in the build state DB
type PageEntry struct {
	Status       PageStatus `json:"status"`
	ErrorType    string     `json:"error_type,omitempty"`    // Error category (on failure)
	ContentHash  string     `json:"content_hash,omitempty"`  // SHA-256 of the page source
	HeadingCount int        `json:"heading_count,omitempty"` // Headings listed by the toc filter, 0 for other filters
	HasMarker    bool       `json:"has_marker,omitempty"`    // Whether the list was injected into the page
	ProcessedAt  time.Time  `json:"processed_at,omitempty"`  // Timestamp of successful processing
	LastAttempt  time.Time  `json:"last_attempt"`
}

// PageResult describes one page handled during a build
type PageResult struct {
	SourcePath   string     `yaml:"source_path" json:"source_path"` // Relative to the site input dir
	OutputPath   string     `yaml:"output_path" json:"output_path"` // Relative to the site output dir
	Status       PageStatus `yaml:"status" json:"status"`
	HeadingCount int        `yaml:"heading_count" json:"heading_count"`
	HasMarker    bool       `yaml:"has_marker" json:"has_marker"`
	ContentHash  string     `yaml:"content_hash,omitempty" json:"content_hash,omitempty"`
	ErrorType    string     `yaml:"error_type,omitempty" json:"error_type,omitempty"`
	Error        string     `yaml:"error,omitempty" json:"error,omitempty"`
}

// BuildReport holds all metadata for a single build of a site
type BuildReport struct {
	BuildID        string       `yaml:"build_id" json:"build_id"`
	SiteKey        string       `yaml:"site_key" json:"site_key"`
	Filter         string       `yaml:"filter" json:"filter"`
	BuildStartTime time.Time    `yaml:"build_start_time" json:"build_start_time"`
	BuildEndTime   time.Time    `yaml:"build_end_time" json:"build_end_time"`
	PagesWritten   int          `yaml:"pages_written" json:"pages_written"`
	PagesSkipped   int          `yaml:"pages_skipped" json:"pages_skipped"`
	PagesFailed    int          `yaml:"pages_failed" json:"pages_failed"`
	Pages          []PageResult `yaml:"pages" json:"pages"`
}

// Tally recomputes the page counters from Pages
func (r *BuildReport) Tally() {
	r.PagesWritten, r.PagesSkipped, r.PagesFailed = 0, 0, 0
	for _, p := range r.Pages {
		switch p.Status {
		case PageStatusSuccess:
			r.PagesWritten++
		case PageStatusSkipped:
			r.PagesSkipped++
		case PageStatusFailure:
			r.PagesFailed++
		}
	}
}
