package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestGetEffectiveIncremental(t *testing.T) {
	tests := []struct {
		name     string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected bool
	}{
		{
			name:     "site enabled overrides global disabled",
			siteCfg:  SiteConfig{Incremental: boolPtr(true)},
			appCfg:   AppConfig{Incremental: false},
			expected: true,
		},
		{
			name:     "site disabled overrides global enabled",
			siteCfg:  SiteConfig{Incremental: boolPtr(false)},
			appCfg:   AppConfig{Incremental: true},
			expected: false,
		},
		{
			name:     "site nil uses global enabled",
			siteCfg:  SiteConfig{},
			appCfg:   AppConfig{Incremental: true},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveIncremental(tt.siteCfg, tt.appCfg))
		})
	}
}

func TestGetEffectiveEnableReport(t *testing.T) {
	assert.True(t, GetEffectiveEnableReport(SiteConfig{EnableReport: boolPtr(true)}, AppConfig{}))
	assert.False(t, GetEffectiveEnableReport(SiteConfig{EnableReport: boolPtr(false)}, AppConfig{EnableReport: true}))
	assert.True(t, GetEffectiveEnableReport(SiteConfig{}, AppConfig{EnableReport: true}))
}

func TestGetEffectiveHighlightCode(t *testing.T) {
	assert.False(t, GetEffectiveHighlightCode(SiteConfig{}, AppConfig{}))
	assert.True(t, GetEffectiveHighlightCode(SiteConfig{}, AppConfig{HighlightCode: true}))
	assert.False(t, GetEffectiveHighlightCode(SiteConfig{HighlightCode: boolPtr(false)}, AppConfig{HighlightCode: true}))
	assert.True(t, GetEffectiveHighlightCode(SiteConfig{HighlightCode: boolPtr(true)}, AppConfig{}))
}

func TestGetEffectiveStrings(t *testing.T) {
	tests := []struct {
		name     string
		get      func(SiteConfig, AppConfig) string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected string
	}{
		{"marker site override", GetEffectiveMarker, SiteConfig{Marker: "{{toc}}"}, AppConfig{DefaultMarker: "<!--x-->"}, "{{toc}}"},
		{"marker global", GetEffectiveMarker, SiteConfig{}, AppConfig{DefaultMarker: "<!--x-->"}, "<!--x-->"},
		{"marker default", GetEffectiveMarker, SiteConfig{}, AppConfig{}, DefaultMarker},
		{"filter site override", GetEffectiveFilter, SiteConfig{Filter: "custom"}, AppConfig{DefaultFilter: "toc"}, "custom"},
		{"filter default", GetEffectiveFilter, SiteConfig{}, AppConfig{}, "toc"},
		{"report site override", GetEffectiveReportFilename, SiteConfig{ReportFilename: "site.yaml"}, AppConfig{ReportFilename: "g.yaml"}, "site.yaml"},
		{"report global", GetEffectiveReportFilename, SiteConfig{}, AppConfig{ReportFilename: "g.yaml"}, "g.yaml"},
		{"report default", GetEffectiveReportFilename, SiteConfig{}, AppConfig{}, DefaultReportFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.get(tt.siteCfg, tt.appCfg))
		})
	}
}

func TestGetEffectiveExtensions(t *testing.T) {
	assert.Equal(t, []string{".xhtml"}, GetEffectiveExtensions(SiteConfig{Extensions: []string{".xhtml"}}, AppConfig{Extensions: []string{".html"}}))
	assert.Equal(t, []string{".html"}, GetEffectiveExtensions(SiteConfig{}, AppConfig{Extensions: []string{".html"}}))
	assert.Equal(t, DefaultExtensions, GetEffectiveExtensions(SiteConfig{}, AppConfig{}))
}
