package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes the whole table as one JSON array.
type JSONWriter struct {
	w       *bufio.Writer
	pretty  bool
	indent  string
	rows    []Record
	written bool
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
		rows:   make([]Record, 0),
	}
}

// Write buffers a single row.
func (w *JSONWriter) Write(rec Record) error {
	w.rows = append(w.rows, rec)
	return nil
}

// WriteAll buffers multiple rows.
func (w *JSONWriter) WriteAll(recs []Record) error {
	w.rows = append(w.rows, recs...)
	return nil
}

// Flush writes the buffered rows as a JSON array. An empty table is "[]".
func (w *JSONWriter) Flush() error {
	var out []byte
	var err error
	if w.pretty {
		out, err = json.MarshalIndent(w.rows, "", w.indent)
	} else {
		out, err = json.Marshal(w.rows)
	}
	if err != nil {
		return err
	}
	w.rows = w.rows[:0]
	w.written = true

	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes any rows not yet written. A table already written by Flush
// is not repeated.
func (w *JSONWriter) Close() error {
	if w.written && len(w.rows) == 0 {
		return nil
	}
	return w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL), one row per line.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write writes a single row as a JSON line.
func (w *JSONLWriter) Write(rec Record) error {
	out, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// WriteAll writes multiple rows as JSON lines.
func (w *JSONLWriter) WriteAll(recs []Record) error {
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
