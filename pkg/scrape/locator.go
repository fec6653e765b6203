// Package scrape reads Google AI Mode answers out of a rendered search page.
package scrape

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/inspectai/pkg/cleaner/markdown"
)

// Locator finds the answer container in a search page.
type Locator struct {
	// Selectors are tried in order; the first with a match wins.
	Selectors []string
	// Noise matches chrome inside the container (feedback widgets, status lines).
	Noise string
	// MinLength is the number of characters the markdown must exceed.
	MinLength int
}

// DefaultLocator returns the selectors Google currently uses for AI Mode answers.
func DefaultLocator() *Locator {
	return &Locator{
		Selectors: []string{
			"div.mZJni.Dn7Fzd",
			"div.Y3BBE",
			"div[jscontroller='M93fIe']",
			"div.kCrYT",
			"div.hgKElc",
		},
		Noise:     `.VlQBpc, [role="status"]`,
		MinLength: 50,
	}
}

// Result is an extracted answer.
type Result struct {
	Markdown string `json:"markdown" yaml:"markdown"`
	// RawHTML is the container's inner HTML exactly as found, for debugging.
	RawHTML string `json:"rawHtml,omitempty" yaml:"raw_html,omitempty"`
	// Selector is the selector that matched.
	Selector string `json:"selector" yaml:"selector"`
}

var extractor = markdown.New(nil)

// ExtractFrom locates the answer in a full page and converts it to markdown.
// The parsed page is never modified.
func (l *Locator) ExtractFrom(page string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var container *goquery.Selection
	var matched string
	for _, sel := range l.Selectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			container, matched = found, sel
			break
		}
	}
	if container == nil {
		return nil, ErrContainerNotFound
	}

	raw, err := container.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to read container: %w", err)
	}

	clean := container.Clone()
	if l.Noise != "" {
		clean.Find(l.Noise).Remove()
	}
	// The extractor reads class and style markers, so it works on the
	// unsanitized clone.
	md := extractor.Extract(clean)

	if n := utf8.RuneCountInString(md); n <= l.MinLength {
		return nil, fmt.Errorf("%w: %d characters", ErrContentTooShort, n)
	}
	return &Result{Markdown: md, RawHTML: raw, Selector: matched}, nil
}
