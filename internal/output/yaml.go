package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes each result as its own YAML document.
type YAMLWriter struct {
	w   *bufio.Writer
	enc *yaml.Encoder
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	bw := bufio.NewWriter(w)
	enc := yaml.NewEncoder(bw)
	enc.SetIndent(2)
	return &YAMLWriter{w: bw, enc: enc}
}

// Write encodes a single item. Documents after the first are separated by ---.
func (w *YAMLWriter) Write(data any) error {
	return w.enc.Encode(data)
}

// Flush finishes the stream and writes it out.
func (w *YAMLWriter) Flush() error {
	if err := w.enc.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}
