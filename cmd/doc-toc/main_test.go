package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-toc/pkg/build"
	"github.com/Sriram-PR/doc-toc/pkg/config"
	"github.com/Sriram-PR/doc-toc/pkg/toc"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

// newSiteFixture creates a source tree with one HTML and one Markdown page
// plus a config pointing at it.
func newSiteFixture(t *testing.T) (cfgPath, outDir string) {
	t.Helper()
	root := t.TempDir()
	inDir := filepath.Join(root, "src")
	outDir = filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(inDir, "guide"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "index.html"),
		[]byte(`<body><!-- toc --><h2 id="a">Foo</h2><h2 id="b">Bar</h2></body>`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "guide", "start.md"),
		[]byte("<!-- toc -->\n\n## Install\n\nText\n\n## Usage\n"), 0644))

	cfgPath = writeConfig(t, fmt.Sprintf(`
num_workers: 2
state_dir: %q
enable_report: true
sites:
  docs:
    input_dir: %q
    output_dir: %q
`, filepath.Join(root, "state"), inDir, outDir))
	return cfgPath, outDir
}

func TestLoadConfig_ValidFile(t *testing.T) {
	cfgPath := writeConfig(t, `
num_workers: 4
state_dir: "./state"
sites:
  test_site:
    input_dir: "./src"
    output_dir: "./out"
    marker: "{{ toc }}"
`)

	cfg, err := loadConfig(cfgPath)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NumWorkers)
	require.Contains(t, cfg.Sites, "test_site")
	assert.Equal(t, "{{ toc }}", cfg.Sites["test_site"].Marker)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := writeConfig(t, "{{invalid yaml")

	_, err := loadConfig(cfgPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestRegisterFilters(t *testing.T) {
	reg, err := registerFilters(&config.AppConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{toc.FilterName}, reg.Names())

	out, err := reg.Apply(toc.FilterName, `<h2 id="a">Foo</h2>`)
	require.NoError(t, err)
	assert.Equal(t, `<ol class="toc"><li><a href="#a">Foo</a></li></ol>`, out)
}

func TestDoValidate_AllSites(t *testing.T) {
	cfgPath := writeConfig(t, `
sites:
  site_a:
    input_dir: "a/src"
    output_dir: "a/out"
  site_b:
    input_dir: "b/src"
    output_dir: "b/out"
    filter: "toc"
`)

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, "", &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), "OK: [site_a]")
	assert.Contains(t, stdout.String(), "OK: [site_b]")
	assert.Contains(t, stdout.String(), "Configuration valid")
}

func TestDoValidate_SpecificSite(t *testing.T) {
	cfgPath := writeConfig(t, `
sites:
  my_site:
    input_dir: "src"
    output_dir: "out"
`)

	var stdout, stderr bytes.Buffer
	exitCode := doValidate(cfgPath, "my_site", &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "OK: Site 'my_site'")
}

func TestDoValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		site    string
		wantErr string
	}{
		{
			name: "site not found",
			content: `
sites:
  existing:
    input_dir: "src"
    output_dir: "out"
`,
			site:    "nonexistent",
			wantErr: "not found",
		},
		{
			name: "missing input dir",
			content: `
sites:
  bad_site:
    output_dir: "out"
`,
			wantErr: "ERROR: [bad_site]",
		},
		{
			name: "output equals input",
			content: `
sites:
  bad_site:
    input_dir: "site"
    output_dir: "./site/"
`,
			wantErr: "must differ",
		},
		{
			name: "unknown filter",
			content: `
sites:
  bad_site:
    input_dir: "src"
    output_dir: "out"
    filter: "sitemap"
`,
			wantErr: "unknown filter 'sitemap'",
		},
		{
			name: "invalid disallowed pattern",
			content: `
sites:
  bad_site:
    input_dir: "src"
    output_dir: "out"
    disallowed_path_patterns: ["("]
`,
			wantErr: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			exitCode := doValidate(writeConfig(t, tt.content), tt.site, &stdout, &stderr)

			assert.Equal(t, 1, exitCode)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestDoValidate_ConfigNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doValidate("/nonexistent.yaml", "", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error")
}

func TestDoListSites(t *testing.T) {
	cfgPath := writeConfig(t, `
default_filter: "toc"
sites:
  alpha:
    input_dir: "alpha/src"
    output_dir: "alpha/out"
    marker: "[[toc]]"
  beta:
    input_dir: "beta/src"
    output_dir: "beta/out"
`)

	var stdout, stderr bytes.Buffer
	exitCode := doListSites(cfgPath, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	out := stdout.String()
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "beta")
	assert.Contains(t, out, "Input: alpha/src")
	assert.Contains(t, out, "Filter: toc")
	assert.Contains(t, out, "Marker: [[toc]]")
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "beta"))
}

func TestDoListSites_ConfigNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doListSites("/nonexistent.yaml", &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error")
}

func TestDoTOC_Stdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	in := strings.NewReader(`<h2 id="x"><em>Hi</em> there</h2><h2>NoId</h2>`)

	exitCode := doTOC(in, "", false, 0, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Equal(t, `<ol class="toc"><li><a href="#x">Hi there</a></li><li><a href="#">NoId</a></li></ol>`+"\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestDoTOC_FileAndJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<H2 ID="y">Case</H2>`), 0644))

	var stdout, stderr bytes.Buffer
	exitCode := doTOC(strings.NewReader("ignored"), path, true, 0, &stdout, &stderr)
	require.Equal(t, 0, exitCode)

	var entries []toc.Entry
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &entries))
	assert.Equal(t, []toc.Entry{{ID: "y", Title: "Case"}}, entries)
}

func TestDoTOC_EmptyInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doTOC(strings.NewReader(""), "", false, 0, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "<ol class=\"toc\"></ol>\n", stdout.String())
}

func TestDoTOC_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := doTOC(strings.NewReader(""), "/nonexistent/page.html", false, 0, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "reading input")
}

func TestDoBuild_SingleSite(t *testing.T) {
	cfgPath, outDir := newSiteFixture(t)

	var stdout, stderr bytes.Buffer
	exitCode := doBuild(context.Background(), buildOptions{
		configPath: cfgPath,
		siteKeys:   []string{"docs"},
		logLevel:   "error",
	}, &stdout, &stderr)

	require.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), "[docs] build")
	assert.Contains(t, stdout.String(), "2 written, 0 skipped, 0 failed")

	index, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, `<body><ol class="toc"><li><a href="#a">Foo</a></li><li><a href="#b">Bar</a></li></ol><h2 id="a">Foo</h2><h2 id="b">Bar</h2></body>`, string(index))

	guide, err := os.ReadFile(filepath.Join(outDir, "guide", "start.html"))
	require.NoError(t, err)
	assert.Contains(t, string(guide), `<li><a href="#install">Install</a></li><li><a href="#usage">Usage</a></li>`)

	report, err := build.LoadReport(filepath.Join(outDir, config.DefaultReportFilename))
	require.NoError(t, err)
	assert.Equal(t, "docs", report.SiteKey)
	assert.Equal(t, 2, report.PagesWritten)
}

func TestDoBuild_IncrementalSkipsUnchanged(t *testing.T) {
	cfgPath, _ := newSiteFixture(t)
	opts := buildOptions{configPath: cfgPath, allSites: true, logLevel: "error"}

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, doBuild(context.Background(), opts, &stdout, &stderr), stderr.String())

	stdout.Reset()
	opts.incremental = true
	require.Equal(t, 0, doBuild(context.Background(), opts, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "0 written, 2 skipped, 0 failed")

	stdout.Reset()
	opts.incremental, opts.full = false, true
	require.Equal(t, 0, doBuild(context.Background(), opts, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "2 written, 0 skipped, 0 failed")
}

func TestDoBuild_Errors(t *testing.T) {
	cfgPath, _ := newSiteFixture(t)

	tests := []struct {
		name    string
		opts    buildOptions
		wantErr string
	}{
		{
			name:    "no site selected",
			opts:    buildOptions{configPath: cfgPath},
			wantErr: "-site",
		},
		{
			name:    "unknown site",
			opts:    buildOptions{configPath: cfgPath, siteKeys: []string{"missing"}},
			wantErr: "not found",
		},
		{
			name:    "conflicting mode flags",
			opts:    buildOptions{configPath: cfgPath, allSites: true, incremental: true, full: true},
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing config",
			opts:    buildOptions{configPath: "/nonexistent.yaml", allSites: true},
			wantErr: "read config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.logLevel = "error"
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 1, doBuild(context.Background(), tt.opts, &stdout, &stderr))
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestDoBuild_MissingInputDir(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeConfig(t, fmt.Sprintf(`
state_dir: %q
sites:
  docs:
    input_dir: %q
    output_dir: %q
`, filepath.Join(root, "state"), filepath.Join(root, "missing"), filepath.Join(root, "out")))

	var stdout, stderr bytes.Buffer
	exitCode := doBuild(context.Background(), buildOptions{configPath: cfgPath, allSites: true, logLevel: "error"}, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "build failed")
}

func TestDoBuild_CancelledContext(t *testing.T) {
	cfgPath, outDir := newSiteFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	exitCode := doBuild(ctx, buildOptions{configPath: cfgPath, allSites: true, logLevel: "error"}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	_, err := os.Stat(filepath.Join(outDir, "index.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestDoWatch_BuildsUntilCancelled(t *testing.T) {
	cfgPath, outDir := newSiteFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- doWatch(ctx, watchOptions{configPath: cfgPath, allSites: true, interval: "1h", onChange: true, logLevel: "error"}, &stdout, &stderr)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(outDir, config.DefaultReportFilename))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case code := <-done:
		require.Equal(t, 0, code, stderr.String())
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Contains(t, stdout.String(), "[docs] last build")
	assert.Contains(t, stdout.String(), "2 written, 0 skipped, 0 failed")
}

func TestDoWatch_Errors(t *testing.T) {
	cfgPath, _ := newSiteFixture(t)

	tests := []struct {
		name    string
		opts    watchOptions
		wantErr string
	}{
		{"bad interval", watchOptions{configPath: cfgPath, allSites: true, interval: "soon"}, "invalid interval"},
		{"zero interval", watchOptions{configPath: cfgPath, allSites: true, interval: "0s"}, "must be positive"},
		{"no site selected", watchOptions{configPath: cfgPath, interval: "1h"}, "-site"},
		{"unknown site", watchOptions{configPath: cfgPath, siteKeys: []string{"missing"}, interval: "1h"}, "not found"},
		{"missing config", watchOptions{configPath: "/nonexistent.yaml", allSites: true, interval: "1h"}, "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.logLevel = "error"
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 1, doWatch(context.Background(), tt.opts, &stdout, &stderr))
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestDoMcpServer_Errors(t *testing.T) {
	cfgPath, _ := newSiteFixture(t)

	t.Run("invalid log level", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, doMcpServer(cfgPath, "stdio", 0, "loud", &stdout, &stderr))
		assert.Contains(t, stderr.String(), "Invalid log level")
	})

	t.Run("missing config", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, doMcpServer("/nonexistent.yaml", "stdio", 0, "info", &stdout, &stderr))
		assert.Contains(t, stderr.String(), "Error loading config")
	})

	t.Run("unknown transport", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, doMcpServer(cfgPath, "carrier-pigeon", 0, "info", &stdout, &stderr))
		assert.Contains(t, stderr.String(), "unknown transport")
	})
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"build", "watch", "toc", "validate", "list-sites", "mcp-server", "version"} {
		assert.Contains(t, out, cmd)
	}
}
