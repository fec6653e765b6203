package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type answer struct {
	Data     string `json:"data" yaml:"data"`
	Provider string `json:"provider" yaml:"provider"`
}

func (a answer) Text() string {
	return a.Data + "\n\n"
}

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatText, "*output.TextWriter"},
		{"", "*output.TextWriter"},
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, tt.format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if got := typeName(w); got != tt.want {
				t.Errorf("NewWriter() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := NewWriter(&bytes.Buffer{}, Format("xml")); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func typeName(w Writer) string {
	switch w.(type) {
	case *TextWriter:
		return "*output.TextWriter"
	case *JSONWriter:
		return "*output.JSONWriter"
	case *JSONLWriter:
		return "*output.JSONLWriter"
	case *YAMLWriter:
		return "*output.YAMLWriter"
	}
	return "unknown"
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"json", " YAML ", "text", "jsonl"} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", in, err)
		}
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("ParseFormat(csv) should fail")
	}
}

func TestJSONWriter_KeepsMarkupReadable(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")
	if err := w.Write(answer{Data: `<td title="a&b">x</td>`, Provider: "openai"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `<td title=\"a&b\">x</td>`) {
		t.Errorf("markup was escaped: %s", out)
	}
	if !strings.HasPrefix(out, "{\n  \"data\"") {
		t.Errorf("single item should be a pretty object: %s", out)
	}
}

func TestJSONWriter_MultipleItemsAsArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")
	_ = w.Write(answer{Data: "a"})
	_ = w.Write(answer{Data: "b"})
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	var got []answer
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[1].Data != "b" {
		t.Errorf("got %+v", got)
	}

	// A second flush with nothing buffered writes nothing.
	before := buf.Len()
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != before {
		t.Error("empty flush wrote output")
	}
}

func TestJSONLWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)
	for _, d := range []string{"<p>one</p>", "two"} {
		if err := w.Write(answer{Data: d}); err != nil {
			t.Fatal(err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "<p>one</p>") {
		t.Errorf("line 0 = %s", lines[0])
	}
}

func TestYAMLWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	if err := w.Write(answer{Data: "line one\nline two", Provider: "gemini"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	var got answer
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got.Data != "line one\nline two" || got.Provider != "gemini" {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(buf.String(), "data: |-") {
		t.Errorf("multi-line data should use a literal block:\n%s", buf.String())
	}
}

func TestTextWriter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"texter", answer{Data: "## Heading"}, "## Heading\n"},
		{"string", "plain\n\n\n", "plain\n"},
		{"other", 42, "42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := WriteOne(buf, FormatText, tt.data); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
