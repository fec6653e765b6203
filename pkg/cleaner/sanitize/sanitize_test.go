package sanitize

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		selector string
		want     string
	}{
		{
			name:     "removes scripts comments and noise attributes",
			html:     `<div class="card" id="x" data-track="1" title="Hi"><script>alert(1)</script><!-- note --><p style="color:red">Text</p></div>`,
			selector: "div",
			want:     `<div title="Hi"><p>Text</p></div>`,
		},
		{
			name:     "replaces src unconditionally",
			html:     `<span><img src="a.png" alt="cat"/></span>`,
			selector: "span",
			want:     `<span><img src="..." alt="cat"/></span>`,
		},
		{
			name:     "keeps values at the length limit",
			html:     `<a href="` + strings.Repeat("a", 50) + `">x</a>`,
			selector: "a",
			want:     `<a href="` + strings.Repeat("a", 50) + `">x</a>`,
		},
		{
			name:     "replaces values over the length limit",
			html:     `<a href="` + strings.Repeat("a", 51) + `" role="link">x</a>`,
			selector: "a",
			want:     `<a href="..." role="link">x</a>`,
		},
		{
			name:     "removes every disallowed tag",
			html:     `<section><style>p{}</style><link rel="x"/><meta name="y"/><noscript>n</noscript><iframe></iframe><svg><path></path></svg><input placeholder="Search" value="q" aria-label="Query"/></section>`,
			selector: "section",
			want:     `<section><input placeholder="Search" value="q" aria-label="Query"/></section>`,
		},
		{
			name:     "disallowed root yields nothing",
			html:     `<div><svg id="s"><circle></circle></svg></div>`,
			selector: "svg",
			want:     ``,
		},
	}

	s := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDoc(t, tt.html)
			got, err := s.Sanitize(doc.Find(tt.selector).First())
			if err != nil {
				t.Fatalf("Sanitize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sanitize() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	doc := mustDoc(t, `<div class="live" onclick="go()"><script>x()</script><!-- keep --><img src="big.png"/></div>`)
	sel := doc.Find("div.live")
	before, _ := goquery.OuterHtml(sel)

	if _, err := New(nil).Sanitize(sel); err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}

	after, _ := goquery.OuterHtml(sel)
	if before != after {
		t.Errorf("input tree was modified:\nbefore %q\nafter  %q", before, after)
	}
}

func TestSanitize_OutputInvariants(t *testing.T) {
	inputs := []string{
		`<div><script>a</script><p>b<!-- c --></p><style>d</style></div>`,
		`<div onclick="x" data-a="1"><ul><li class="i">One<!--x--></li></ul><table border="1"><tr><td width="3">c</td></tr></table></div>`,
		`<div><div><div><span lang="en" title="t"><script src="s.js"></script>deep</span></div></div></div>`,
		`<div><form action="/s"><button type="submit">Go</button><label for="q">Q</label></form></div>`,
	}

	allowed := toSet(DefaultConfig().AllowedAttributes)
	s := New(nil)
	for i, in := range inputs {
		doc := mustDoc(t, in)
		out, err := s.Sanitize(doc.Find("body > div"))
		if err != nil {
			t.Fatalf("input %d: Sanitize() error = %v", i, err)
		}
		for _, banned := range []string{"<script", "<style", "<!--"} {
			if strings.Contains(out, banned) {
				t.Errorf("input %d: output contains %q: %s", i, banned, out)
			}
		}

		nodes, err := html.ParseFragment(strings.NewReader(out), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
		if err != nil {
			t.Fatalf("reparse: %v", err)
		}
		var check func(n *html.Node)
		check = func(n *html.Node) {
			for _, a := range n.Attr {
				if _, ok := allowed[a.Key]; !ok {
					t.Errorf("input %d: attribute %q not in allow-list", i, a.Key)
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				check(c)
			}
		}
		for _, n := range nodes {
			check(n)
		}
	}
}

func TestSanitize_EmptySelection(t *testing.T) {
	doc := mustDoc(t, `<p>x</p>`)
	_, err := New(nil).Sanitize(doc.Find("table"))
	if err == nil {
		t.Fatal("expected error for empty selection")
	}
	if !errors.Is(err, ErrEmptySelection) {
		t.Errorf("expected ErrEmptySelection, got %v", err)
	}
	if !IsSanitizeError(err) {
		t.Errorf("expected *SanitizeError, got %T", err)
	}
}

func TestSanitizeWithStats(t *testing.T) {
	doc := mustDoc(t, `<div class="a" title="`+strings.Repeat("t", 60)+`"><script></script><script></script><!--1--><p id="p"><!--2-->x</p></div>`)

	res, err := New(nil).SanitizeWithStats(doc.Find("div"))
	if err != nil {
		t.Fatalf("SanitizeWithStats() error = %v", err)
	}

	st := res.Stats
	if st.ElementsRemoved["script"] != 2 {
		t.Errorf("scripts removed = %d, want 2", st.ElementsRemoved["script"])
	}
	if st.CommentsRemoved != 2 {
		t.Errorf("comments removed = %d, want 2", st.CommentsRemoved)
	}
	if st.AttributesRemoved != 2 {
		t.Errorf("attributes removed = %d, want 2", st.AttributesRemoved)
	}
	if st.AttributesTruncated != 1 {
		t.Errorf("attributes truncated = %d, want 1", st.AttributesTruncated)
	}
	if st.ElementsKept != 2 {
		t.Errorf("elements kept = %d, want 2", st.ElementsKept)
	}
	if st.OutputBytes != len(res.HTML) || st.InputBytes <= st.OutputBytes {
		t.Errorf("unexpected byte counts in=%d out=%d", st.InputBytes, st.OutputBytes)
	}
	if !strings.Contains(st.String(), "script=2") {
		t.Errorf("String() missing per-tag counts:\n%s", st.String())
	}
}

func TestSanitizeFragment_TableRowContext(t *testing.T) {
	got, err := New(nil).SanitizeFragment(`<tr class="row"><td data-x="1">A</td><td>B</td></tr>`, "tbody")
	if err != nil {
		t.Fatalf("SanitizeFragment() error = %v", err)
	}
	if got != `<tr><td>A</td><td>B</td></tr>` {
		t.Errorf("SanitizeFragment() = %q", got)
	}
}

func TestClean_ImplementsCleaner(t *testing.T) {
	s := New(nil)
	got, err := s.Clean(`<p class="x">a</p><!-- c -->tail`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != `<p>a</p>tail` {
		t.Errorf("Clean() = %q", got)
	}
	if s.Name() != "sanitize" {
		t.Errorf("Name() = %q", s.Name())
	}
}

func TestScrapeConfig_RemovesControls(t *testing.T) {
	doc := mustDoc(t, `<div><button>Copy</button><video src="v.mp4"></video><p>answer</p></div>`)

	got, err := New(ScrapeConfig()).Sanitize(doc.Find("div"))
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != `<div><p>answer</p></div>` {
		t.Errorf("Sanitize() = %q", got)
	}
}

func TestPreset(t *testing.T) {
	if _, err := Preset("scrape"); err != nil {
		t.Errorf("Preset(scrape) error = %v", err)
	}
	_, err := Preset("nope")
	if err == nil || !strings.Contains(err.Error(), "default") {
		t.Errorf("expected error listing presets, got %v", err)
	}
}
