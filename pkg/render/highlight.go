package render

import (
	"bytes"

	"github.com/alecthomas/chroma"
	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// HighlightClassPrefix prefixes every CSS class emitted for highlighted code
const HighlightClassPrefix = "highlight-"

// codeHighlighter renders fenced code blocks with a known language through chroma.
// Output uses CSS classes, so pages pick up whatever stylesheet the site ships.
type codeHighlighter struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

func newCodeHighlighter() *codeHighlighter {
	return &codeHighlighter{
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.ClassPrefix(HighlightClassPrefix)),
		style:     styles.Fallback,
	}
}

func (h *codeHighlighter) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, h.renderFencedCodeBlock)
}

func (h *codeHighlighter) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lang := n.Language(source)
	var lexer chroma.Lexer
	if len(lang) > 0 {
		lexer = lexers.Get(string(lang))
	}
	if lexer == nil {
		// Same markup goldmark produces without highlighting
		_, _ = w.WriteString("<pre><code")
		if len(lang) > 0 {
			_, _ = w.WriteString(` class="language-`)
			_, _ = w.Write(util.EscapeHTML(lang))
			_ = w.WriteByte('"')
		}
		_ = w.WriteByte('>')
		_, _ = w.Write(util.EscapeHTML(code.Bytes()))
		_, _ = w.WriteString("</code></pre>\n")
		return ast.WalkSkipChildren, nil
	}

	it, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, err
	}
	if err := h.formatter.Format(w, h.style, it); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}
