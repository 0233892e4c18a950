// Package dataset loads labelled tweets from tabular files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmylchreest/airlinebench/internal/logger"
)

// Column names required in every dataset file.
const (
	ColumnTweet    = "tweet"
	ColumnAirlines = "airlines"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// Example is one labelled tweet.
type Example struct {
	Text   string
	Labels []string
}

// Expected returns the canonical ground-truth string: labels joined by ", ".
func (e Example) Expected() string {
	return strings.Join(e.Labels, ", ")
}

// Texts returns the input texts of examples in order.
func Texts(examples []Example) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Text
	}
	return out
}

// NormalizeLabels turns a raw label field such as "['United Airlines', 'US Airways']"
// into an ordered set of names. Brackets and quotes are removed, the field is
// split on commas and each part trimmed; empty and repeated names are dropped.
// Applying it to the joined output of a previous call yields the same set.
func NormalizeLabels(raw string) []string {
	cleaned := strings.NewReplacer("[", "", "]", "", "'", "", "\"", "").Replace(raw)
	parts := strings.Split(cleaned, ",")

	seen := make(map[string]bool, len(parts))
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		labels = append(labels, name)
	}
	return labels
}

// Load reads a dataset CSV file with at least the tweet and airlines columns.
func Load(path string) ([]Example, error) {
	f, err := os.Open(path) //#nosec G304 -- dataset path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	examples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	logger.Info("dataset loaded", "path", path, "examples", len(examples))
	return examples, nil
}

// Read parses dataset rows from r. Rows keep their file order.
func Read(r io.Reader) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, err
	}
	tweetCol, airlinesCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case ColumnTweet:
			tweetCol = i
		case ColumnAirlines:
			airlinesCol = i
		}
	}
	if tweetCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnTweet)
	}
	if airlinesCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnAirlines)
	}

	var examples []Example
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) <= tweetCol || len(rec) <= airlinesCol {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(tweetCol, airlinesCol)+1, len(rec))
		}
		examples = append(examples, Example{
			Text:   rec[tweetCol],
			Labels: NormalizeLabels(rec[airlinesCol]),
		})
	}
	return examples, nil
}

// KnownAirlines returns the distinct airline names found in the examples,
// in first-seen order.
func KnownAirlines(examples []Example) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ex := range examples {
		for _, l := range ex.Labels {
			if !seen[l] {
				seen[l] = true
				names = append(names, l)
			}
		}
	}
	return names
}
