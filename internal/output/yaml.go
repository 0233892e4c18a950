package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes the table as a YAML sequence.
type YAMLWriter struct {
	w       *bufio.Writer
	rows    []Record
	written bool
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w:    bufio.NewWriter(w),
		rows: make([]Record, 0),
	}
}

// Write buffers a single row.
func (w *YAMLWriter) Write(rec Record) error {
	w.rows = append(w.rows, rec)
	return nil
}

// WriteAll buffers multiple rows.
func (w *YAMLWriter) WriteAll(recs []Record) error {
	w.rows = append(w.rows, recs...)
	return nil
}

// Flush writes the buffered rows.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	if err := encoder.Encode(w.rows); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	w.rows = w.rows[:0]
	w.written = true
	return w.w.Flush()
}

// Close flushes any rows not yet written. A table already written by Flush
// is not repeated.
func (w *YAMLWriter) Close() error {
	if w.written && len(w.rows) == 0 {
		return nil
	}
	return w.Flush()
}
