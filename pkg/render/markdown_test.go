package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownRenderer_HeadingIDs(t *testing.T) {
	markdown := []byte(`# Main Title

Some intro text.

## Section One

Content here.

## Section *Two*
`)

	out, err := NewMarkdownRenderer().Render(markdown)
	require.NoError(t, err)

	assert.Contains(t, out, `<h1 id="main-title">Main Title</h1>`)
	assert.Contains(t, out, `<h2 id="section-one">Section One</h2>`)
	assert.Contains(t, out, `<h2 id="section-two">Section <em>Two</em></h2>`)
}

func TestMarkdownRenderer_KeepsRawHTML(t *testing.T) {
	out, err := NewMarkdownRenderer().Render([]byte("<!-- toc -->\n\n## Only\n"))
	require.NoError(t, err)

	assert.Contains(t, out, "<!-- toc -->")
	assert.Contains(t, out, `<h2 id="only">Only</h2>`)
}

func TestMarkdownRenderer_EmptyDocument(t *testing.T) {
	out, err := NewMarkdownRenderer().Render([]byte(``))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestIsMarkdown(t *testing.T) {
	assert.True(t, IsMarkdown("docs/intro.md"))
	assert.True(t, IsMarkdown("docs/INTRO.MARKDOWN"))
	assert.False(t, IsMarkdown("docs/intro.html"))
	assert.False(t, IsMarkdown("README"))
}

func TestMarkdownRenderer_CodeHighlighting(t *testing.T) {
	src := []byte("## Example\n\n```go\nfunc main() {}\n```\n")

	t.Run("disabled by default", func(t *testing.T) {
		out, err := NewMarkdownRenderer().Render(src)
		require.NoError(t, err)
		assert.Contains(t, out, `<pre><code class="language-go">func main() {}`)
		assert.NotContains(t, out, HighlightClassPrefix)
	})

	t.Run("known language", func(t *testing.T) {
		out, err := NewMarkdownRenderer(WithCodeHighlighting()).Render(src)
		require.NoError(t, err)
		assert.Contains(t, out, `class="`+HighlightClassPrefix+`chroma"`)
		assert.Contains(t, out, `>func</span>`)
		assert.Contains(t, out, `<h2 id="example">Example</h2>`)
	})

	t.Run("unknown language falls back to plain block", func(t *testing.T) {
		out, err := NewMarkdownRenderer(WithCodeHighlighting()).Render([]byte("```nosuchlang\na < b\n```\n"))
		require.NoError(t, err)
		assert.Contains(t, out, `<pre><code class="language-nosuchlang">a &lt; b`)
	})

	t.Run("no language", func(t *testing.T) {
		out, err := NewMarkdownRenderer(WithCodeHighlighting()).Render([]byte("```\nplain\n```\n"))
		require.NoError(t, err)
		assert.Contains(t, out, "<pre><code>plain\n</code></pre>")
	})
}
