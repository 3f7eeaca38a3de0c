package toc

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

// FilterName is the name the table-of-contents filter is registered under.
const FilterName = "toc"

// DefaultMatchTimeout bounds a single pattern evaluation on pathological input.
const DefaultMatchTimeout = 5 * time.Second

// asciiSpace is what titles are trimmed of; non-breaking spaces are content.
const asciiSpace = " \t\n\v\f\r\x00"

const (
	// Close tag must repeat the opening tag name, hence regexp2 for \1.
	// Neither the attributes nor the body may run into the next <h2, so an
	// unclosed heading is dropped instead of swallowing the one after it.
	headingExpr = `<(h2)(?:>|\s+([^>]*)>)((?:(?!<h2[\s>]).)*?)</\1\s*>`
	idExpr      = `(?:^|\s)id\s*=\s*(['"])(.*?)\1`
	tagExpr     = `<(\w*).*?>(.*?)</\1\s*>`
)

// Match is one level-2 heading occurrence found in the input.
type Match struct {
	Attrs string // Raw attribute text of the opening tag (may be empty)
	ID    string // Value of the id attribute, empty when absent
	Body  string // Raw inner content, nested tags included
}

// Entry is a single table-of-contents item derived from a Match.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Extractor finds level-2 headings and renders them as an ordered list.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	heading *regexp2.Regexp
	id      *regexp2.Regexp
	tag     *regexp2.Regexp
}

var defaultExtractor = NewExtractor(DefaultMatchTimeout)

// NewExtractor compiles the heading patterns with the given per-match timeout.
// A non-positive timeout falls back to DefaultMatchTimeout.
func NewExtractor(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	e := &Extractor{
		heading: regexp2.MustCompile(headingExpr, regexp2.IgnoreCase|regexp2.Singleline),
		id:      regexp2.MustCompile(idExpr, regexp2.IgnoreCase),
		tag:     regexp2.MustCompile(tagExpr, regexp2.Singleline),
	}
	e.heading.MatchTimeout = timeout
	e.id.MatchTimeout = timeout
	e.tag.MatchTimeout = timeout
	return e
}

// TOC is the table-of-contents filter using the default extractor.
func TOC(input string) string {
	return defaultExtractor.TOC(input)
}

// Extract returns the entries found by the default extractor.
func Extract(input string) ([]Entry, error) {
	return defaultExtractor.Extract(input)
}

// TOC scans input for <h2> headings and returns an <ol class="toc"> list
// linking to each of them. It never fails: if the pattern engine gives up,
// the entries collected so far are rendered.
func (e *Extractor) TOC(input string) string {
	entries, _ := e.Extract(input)
	return Render(entries)
}

// Extract returns the table-of-contents entries in document order.
// The error is non-nil only when the pattern engine fails (e.g. match timeout);
// entries found before the failure are still returned.
func (e *Extractor) Extract(input string) ([]Entry, error) {
	matches, err := e.Scan(input)
	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		title, stripErr := e.stripTags(m.Body)
		if stripErr != nil {
			// Keep the raw body rather than dropping the heading.
			title = m.Body
			if err == nil {
				err = stripErr
			}
		}
		entries = append(entries, Entry{ID: m.ID, Title: strings.Trim(title, asciiSpace)})
	}
	return entries, err
}

// Scan returns every non-overlapping heading match in input.
func (e *Extractor) Scan(input string) ([]Match, error) {
	var matches []Match

	m, err := e.heading.FindStringMatch(input)
	for m != nil && err == nil {
		attrs := m.GroupByNumber(2).String()
		id, idErr := e.findID(attrs)
		if idErr != nil {
			return matches, idErr
		}
		matches = append(matches, Match{
			Attrs: attrs,
			ID:    id,
			Body:  m.GroupByNumber(3).String(),
		})
		m, err = e.heading.FindNextMatch(m)
	}
	if err != nil {
		return matches, e.engineError("scanning headings", e.heading)
	}
	return matches, nil
}

// findID extracts the quoted id attribute value from an attribute run.
func (e *Extractor) findID(attrs string) (string, error) {
	if attrs == "" {
		return "", nil
	}
	m, err := e.id.FindStringMatch(attrs)
	if err != nil {
		return "", e.engineError("reading id attribute", e.id)
	}
	if m == nil {
		return "", nil
	}
	return m.GroupByNumber(2).String(), nil
}

// stripTags unwraps one level of <tag ...>content</tag> pairs.
func (e *Extractor) stripTags(body string) (string, error) {
	out, err := e.tag.Replace(body, "$2", -1, -1)
	if err != nil {
		return "", e.engineError("stripping heading markup", e.tag)
	}
	return out, nil
}

// engineError reports a failed evaluation without the underlying regexp2
// error, which quotes the whole input.
func (e *Extractor) engineError(step string, re *regexp2.Regexp) error {
	return fmt.Errorf("%w: %s: match timeout after %v", utils.ErrPatternEngine, step, re.MatchTimeout)
}

// Render builds the ordered list for entries. IDs and titles are inserted verbatim.
func Render(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString(`<ol class="toc">`)
	for _, entry := range entries {
		sb.WriteString(`<li><a href="#`)
		sb.WriteString(entry.ID)
		sb.WriteString(`">`)
		sb.WriteString(entry.Title)
		sb.WriteString(`</a></li>`)
	}
	sb.WriteString(`</ol>`)
	return sb.String()
}
