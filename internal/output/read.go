package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Row is a table row keyed by column name.
type Row map[string]string

// ReadFile reads a table previously written by a Store. The format is taken
// from the file extension.
func ReadFile(path string) ([]Row, error) {
	format, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //#nosec G304 -- path is supplied by the operator
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Read(f, format)
}

// Read parses a table in format from r.
func Read(r io.Reader, format Format) ([]Row, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatJSON:
		var items []map[string]any
		if err := json.NewDecoder(r).Decode(&items); err != nil {
			return nil, err
		}
		return toRows(items), nil
	case FormatJSONL:
		var items []map[string]any
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var item map[string]any
			if err := json.Unmarshal([]byte(line), &item); err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return toRows(items), nil
	case FormatYAML:
		var items []map[string]any
		if err := yaml.NewDecoder(r).Decode(&items); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return toRows(items), nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", format)
}

func readCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func toRows(items []map[string]any) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row := make(Row, len(item))
		for k, v := range item {
			if v == nil {
				row[k] = ""
				continue
			}
			row[k] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows
}
