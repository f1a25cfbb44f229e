// Package extract applies CSS selectors to HTML markup.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"
)

// ErrInvalidSelector is returned when a selector fails to compile. Callers
// detect it with eris.Is.
var ErrInvalidSelector = eris.New("invalid css selector")

// CSS extracts text fragments from markup by CSS selector.
type CSS struct{}

// NewCSS creates a CSS extractor.
func NewCSS() *CSS {
	return &CSS{}
}

// Fragments returns the trimmed text content of every element matching
// selector, in document order. Zero matches yield an empty result with no
// error. Parsing is lenient: malformed markup is extracted from the
// best-effort parse tree rather than rejected.
func (c *CSS) Fragments(markup, selector string) ([]string, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidSelector, "extract: compile %q: %v", selector, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse markup")
	}

	var fragments []string
	doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		fragments = append(fragments, strings.TrimSpace(s.Text()))
	})
	return fragments, nil
}
