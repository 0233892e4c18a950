package output

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes a header row taken from the first record followed by one
// row per record.
type CSVWriter struct {
	w          *csv.Writer
	header     []string
	headerDone bool
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write writes a single row, preceded by the header on first use.
func (w *CSVWriter) Write(rec Record) error {
	if !w.headerDone {
		w.header = rec.Header()
		if err := w.w.Write(w.header); err != nil {
			return err
		}
		w.headerDone = true
	}
	fields := rec.Fields()
	if len(fields) != len(w.header) {
		return fmt.Errorf("csv row has %d fields, header has %d", len(fields), len(w.header))
	}
	return w.w.Write(fields)
}

// WriteAll writes multiple rows.
func (w *CSVWriter) WriteAll(recs []Record) error {
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered rows.
func (w *CSVWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// Close flushes the writer.
func (w *CSVWriter) Close() error {
	return w.Flush()
}
