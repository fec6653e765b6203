package markdown

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/inspectai/pkg/cleaner"
)

// kind is the semantic category of a node. fold has exactly one case per kind.
type kind int

const (
	kindSkip kind = iota // comments, doctypes
	kindText
	kindIgnored
	kindCodeBlock
	kindList
	kindTable
	kindHeading
	kindStrong
	kindEmphasis
	kindLink
	kindLineBreak
	kindBlock
	kindOther
)

var blankRun = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)

// codeNewline stands in for line breaks inside code blocks until blank line
// runs are collapsed. The HTML parser never leaves NUL in text nodes.
const codeNewline = "\x00"

var defaultExtractor = New(nil)

// Extract folds the first node of sel using the default configuration.
func Extract(sel *goquery.Selection) string {
	return defaultExtractor.Extract(sel)
}

// Extractor converts HTML subtrees to Markdown. It never modifies its input
// and is safe for concurrent use.
type Extractor struct {
	config  *Config
	ignored map[string]struct{}
}

// New creates an Extractor. If config is nil, DefaultConfig() is used.
func New(config *Config) *Extractor {
	if config == nil {
		config = DefaultConfig()
	}
	ignored := make(map[string]struct{}, len(config.IgnoredTags))
	for _, tag := range config.IgnoredTags {
		ignored[tag] = struct{}{}
	}
	return &Extractor{config: config, ignored: ignored}
}

// Name returns the cleaner name for logging.
func (e *Extractor) Name() string {
	return "markdown"
}

// Clean implements cleaner.Cleaner.
func (e *Extractor) Clean(markup string) (string, error) {
	return e.ExtractHTML(markup)
}

// ExtractHTML parses markup and folds its body.
func (e *Extractor) ExtractHTML(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	return e.Extract(doc.Find("body")), nil
}

// Extract folds the first node of sel into Markdown. Subtrees without
// visible text produce "".
func (e *Extractor) Extract(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	out := normalizeBlankLines(e.fold(sel.First()))
	if strings.TrimSpace(out) == "" {
		return ""
	}
	return out
}

func (e *Extractor) classify(s *goquery.Selection) kind {
	n := s.Nodes[0]
	switch n.Type {
	case html.TextNode:
		return kindText
	case html.DocumentNode:
		return kindOther
	case html.ElementNode:
	default:
		return kindSkip
	}

	tag := n.Data
	if _, ok := e.ignored[tag]; ok {
		return kindIgnored
	}

	switch tag {
	case "pre":
		return kindCodeBlock
	case "ul", "ol":
		return kindList
	case "table":
		return kindTable
	case "h1", "h2", "h3", "h4":
		return kindHeading
	case "strong", "b":
		return kindStrong
	case "em", "i":
		return kindEmphasis
	case "a":
		return kindLink
	case "br":
		return kindLineBreak
	}

	if e.config.CodeBlockSelector != "" && s.Is(e.config.CodeBlockSelector) {
		return kindCodeBlock
	}
	if role, _ := s.Attr("role"); role == "heading" {
		return kindHeading
	}

	switch tag {
	case "div", "p", "section":
		return kindBlock
	}
	return kindOther
}

func (e *Extractor) fold(s *goquery.Selection) string {
	switch e.classify(s) {
	case kindSkip, kindIgnored:
		return ""

	case kindText:
		text := collapse(s.Nodes[0].Data)
		if text == "" {
			return ""
		}
		return text + " "

	case kindCodeBlock:
		return e.codeBlock(s)

	case kindList:
		return e.list(s)

	case kindTable:
		return table(s)

	case kindHeading:
		text := collapse(s.Text())
		if text == "" {
			return ""
		}
		return "\n" + e.config.HeadingPrefix + " " + text + "\n"

	case kindStrong:
		return wrapInline(e.children(s), "**")

	case kindEmphasis:
		return wrapInline(e.children(s), "*")

	case kindLink:
		return nonBlank(e.children(s))

	case kindLineBreak:
		return "\n"

	case kindBlock:
		content := nonBlank(e.children(s))
		if content == "" || e.passThrough(s) {
			return content
		}
		return content + "\n\n"

	case kindOther:
		return nonBlank(e.children(s))
	}
	return ""
}

func (e *Extractor) children(s *goquery.Selection) string {
	var sb strings.Builder
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		sb.WriteString(e.fold(child))
	})
	return sb.String()
}

func (e *Extractor) codeBlock(s *goquery.Selection) string {
	code := s.Find("code").First()
	if code.Length() == 0 {
		code = s
	}
	text := strings.TrimRight(code.Text(), "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}

	lang := ""
	if e.config.CodeLanguageSelector != "" {
		lang = strings.TrimSpace(s.Find(e.config.CodeLanguageSelector).First().Text())
	}
	text = strings.ReplaceAll(text, "\n", codeNewline)
	return "\n```" + lang + "\n" + text + "\n```\n"
}

func (e *Extractor) list(s *goquery.Selection) string {
	var sb strings.Builder
	s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		item := collapse(e.children(li))
		if item == "" {
			return
		}
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	})
	if sb.Len() == 0 {
		return ""
	}
	return "\n" + sb.String() + "\n"
}

func table(s *goquery.Selection) string {
	var sb strings.Builder
	wroteHeader := false
	hasText := false

	s.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td").Map(func(_ int, cell *goquery.Selection) string {
			text := collapse(cell.Text())
			if text != "" {
				hasText = true
			}
			return text
		})
		if len(cells) == 0 {
			return
		}

		sb.WriteString("| ")
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString(" |\n")

		if !wroteHeader {
			sep := make([]string, len(cells))
			for i := range sep {
				sep[i] = "---"
			}
			sb.WriteString("| ")
			sb.WriteString(strings.Join(sep, " | "))
			sb.WriteString(" |\n")
			wroteHeader = true
		}
	})

	if !hasText {
		return ""
	}
	return "\n" + sb.String() + "\n"
}

func (e *Extractor) passThrough(s *goquery.Selection) bool {
	for _, attr := range e.config.PassThroughAttrs {
		if _, ok := s.Attr(attr); ok {
			return true
		}
	}
	style, _ := s.Attr("style")
	style = strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(style, "display:contents")
}

func wrapInline(content, marker string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	return marker + content + marker + " "
}

func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, codeNewline, " ")), " ")
}

func nonBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// normalizeBlankLines limits runs of blank lines to one, then restores the
// line breaks held back inside code blocks.
func normalizeBlankLines(md string) string {
	return strings.ReplaceAll(blankRun.ReplaceAllString(md, "\n\n"), codeNewline, "\n")
}

var _ cleaner.Cleaner = (*Extractor)(nil)
