package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TextWriter writes results for a human reading a terminal.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write renders data with Text() when available, otherwise with %v.
// Every result ends with exactly one newline.
func (w *TextWriter) Write(data any) error {
	var s string
	switch v := data.(type) {
	case Texter:
		s = v.Text()
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprintf("%v", v)
	}
	if _, err := w.w.WriteString(strings.TrimRight(s, "\n")); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *TextWriter) Flush() error {
	return w.w.Flush()
}
