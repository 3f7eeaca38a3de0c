package render

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

// MarkdownRenderer converts Markdown page sources into HTML with stable heading
// ids, so the generated headings can be linked from a table of contents.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

type options struct {
	highlight bool
}

// Option configures a MarkdownRenderer
type Option func(*options)

// WithCodeHighlighting renders fenced code blocks with a known language as
// chroma token spans, classed with HighlightClassPrefix.
func WithCodeHighlighting() Option {
	return func(o *options) { o.highlight = true }
}

// NewMarkdownRenderer creates a renderer with GFM and automatic heading ids.
// Raw HTML in the source is passed through, which keeps placeholder comments intact.
func NewMarkdownRenderer(opts ...Option) *MarkdownRenderer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rendererOpts := []renderer.Option{html.WithUnsafe()}
	if o.highlight {
		rendererOpts = append(rendererOpts, renderer.WithNodeRenderers(util.Prioritized(newCodeHighlighter(), 200)))
	}

	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(rendererOpts...),
		),
	}
}

// Render converts src to HTML
func (r *MarkdownRenderer) Render(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrMarkdownConversion, err)
	}
	return buf.String(), nil
}

// IsMarkdown reports whether path names a Markdown source
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
