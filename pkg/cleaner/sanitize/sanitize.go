package sanitize

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jmylchreest/inspectai/pkg/cleaner"
)

// Sanitizer produces cleaned element trees. It is safe for concurrent use.
type Sanitizer struct {
	config  *Config
	remove  map[string]struct{}
	allowed map[string]struct{}
}

// New creates a Sanitizer. If config is nil, DefaultConfig() is used.
func New(config *Config) *Sanitizer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxAttrLen <= 0 {
		config.MaxAttrLen = DefaultMaxAttrLen
	}
	return &Sanitizer{
		config:  config,
		remove:  toSet(config.RemoveTags),
		allowed: toSet(config.AllowedAttributes),
	}
}

// Name returns the cleaner name for logging.
func (s *Sanitizer) Name() string {
	return "sanitize"
}

// Clean parses markup as a body fragment and sanitizes it.
// It implements cleaner.Cleaner.
func (s *Sanitizer) Clean(markup string) (string, error) {
	return s.SanitizeHTML(markup)
}

// Sanitize returns the cleaned outer HTML of the first node in sel.
func (s *Sanitizer) Sanitize(sel *goquery.Selection) (string, error) {
	result, err := s.SanitizeWithStats(sel)
	if err != nil {
		return "", err
	}
	return result.HTML, nil
}

// SanitizeWithStats sanitizes the first node in sel and reports what was removed.
func (s *Sanitizer) SanitizeWithStats(sel *goquery.Selection) (result *Result, err error) {
	if sel == nil || sel.Length() == 0 {
		return nil, &SanitizeError{Op: "clone", Err: ErrEmptySelection}
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &SanitizeError{Op: "clone", Err: fmt.Errorf("%v", r)}
		}
	}()

	start := time.Now()
	stats := NewStats()
	first := sel.First()
	if input, rerr := goquery.OuterHtml(first); rerr == nil {
		stats.InputBytes = len(input)
	}

	out, err := s.sanitizeClone(first.Clone(), stats)
	if err != nil {
		return nil, err
	}

	stats.OutputBytes = len(out)
	stats.Duration = time.Since(start)
	return &Result{HTML: out, Stats: stats}, nil
}

// SanitizeHTML parses markup as a fragment of <body> and sanitizes every
// top-level node, concatenating the results.
func (s *Sanitizer) SanitizeHTML(markup string) (string, error) {
	return s.SanitizeFragment(markup, "body")
}

// SanitizeFragment parses markup in the context of a parent element named
// contextTag. Outer HTML read from a live page (a <tr>, an <li>) only
// parses faithfully inside its real parent, so callers pass the parent's
// tag name when they know it.
func (s *Sanitizer) SanitizeFragment(markup, contextTag string) (string, error) {
	if strings.TrimSpace(contextTag) == "" {
		contextTag = "body"
	}
	contextTag = strings.ToLower(contextTag)
	ctxNode := &html.Node{
		Type:     html.ElementNode,
		Data:     contextTag,
		DataAtom: atom.Lookup([]byte(contextTag)),
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), ctxNode)
	if err != nil {
		return "", &SanitizeError{Op: "parse", Err: err}
	}

	var sb strings.Builder
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			out, err := s.Sanitize(goquery.NewDocumentFromNode(n).Selection)
			if err != nil {
				return "", err
			}
			sb.WriteString(out)
		case html.TextNode:
			sb.WriteString(html.EscapeString(n.Data))
		}
	}
	return sb.String(), nil
}

// sanitizeClone mutates clone, which must not be attached to a live tree.
func (s *Sanitizer) sanitizeClone(clone *goquery.Selection, stats *Stats) (string, error) {
	root := clone.Nodes[0]

	switch root.Type {
	case html.CommentNode:
		stats.CommentsRemoved++
		return "", nil
	case html.TextNode:
		return html.EscapeString(root.Data), nil
	case html.ElementNode:
	default:
		return "", nil
	}

	if _, drop := s.remove[root.Data]; drop {
		stats.RecordRemoval(root.Data)
		return "", nil
	}

	for _, tag := range s.config.RemoveTags {
		clone.Find(tag).Each(func(_ int, el *goquery.Selection) {
			stats.RecordRemoval(tag)
			el.Remove()
		})
	}

	stats.CommentsRemoved += removeComments(root)
	s.filterAttributes(root, stats)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", &SanitizeError{Op: "render", Err: err}
	}
	return buf.String(), nil
}

// removeComments detaches every comment node below n and returns the count.
func removeComments(n *html.Node) int {
	removed := 0
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
			removed++
		} else {
			removed += removeComments(child)
		}
		child = next
	}
	return removed
}

// filterAttributes applies the allow-list and placeholder policy to n and
// every element below it.
func (s *Sanitizer) filterAttributes(n *html.Node, stats *Stats) {
	if n.Type == html.ElementNode && len(n.Attr) > 0 {
		kept := make([]html.Attribute, 0, len(n.Attr))
		for _, attr := range n.Attr {
			if _, ok := s.allowed[attr.Key]; !ok || attr.Namespace != "" {
				stats.AttributesRemoved++
				continue
			}
			if attr.Key == "src" || utf8.RuneCountInString(attr.Val) > s.config.MaxAttrLen {
				attr.Val = Placeholder
				stats.AttributesTruncated++
			}
			kept = append(kept, attr)
		}
		n.Attr = kept
	}
	if n.Type == html.ElementNode {
		stats.ElementsKept++
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		s.filterAttributes(child, stats)
	}
}

var _ cleaner.Cleaner = (*Sanitizer)(nil)
