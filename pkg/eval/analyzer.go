package eval

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/internal/output"
	"github.com/jmylchreest/airlinebench/pkg/llm"
)

// ErrNoFailures is returned when a results table has no failed rows.
var ErrNoFailures = errors.New("no failures to analyze")

// DefaultMaxExamples caps the failures sent for analysis.
const DefaultMaxExamples = 10

const analysisPrompt = `Analyze these failed airline extractions and identify patterns in the errors.
Focus on why the model might have made these mistakes and how to improve the prompt.

Failed Examples:
%s

Please provide:
1. Common error patterns
2. Suggested improvements to the prompt
3. Specific examples of how these errors could be avoided
`

const analysisRule = "============================================================"

// Failure is one mis-extracted item.
type Failure struct {
	Text      string
	Expected  string
	Extracted string
}

// Analysis is the service's review of a strategy's failures.
type Analysis struct {
	Method   string
	Failures int
	Sampled  []Failure
	Text     string

	// Path is the saved analysis, empty without a store.
	Path string
}

// Analyzer asks the completion service to explain extraction failures.
type Analyzer struct {
	client      llm.Completer
	store       *output.Store
	maxExamples int

	// Shuffle reorders failures before sampling; defaults to rand.Shuffle.
	Shuffle func(n int, swap func(i, j int))
}

// NewAnalyzer creates an Analyzer. store may be nil.
func NewAnalyzer(client llm.Completer, store *output.Store, maxExamples int) *Analyzer {
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}
	return &Analyzer{client: client, store: store, maxExamples: maxExamples, Shuffle: rand.Shuffle}
}

// AnalyzeFile reads a results or comparison table and analyzes method's failures.
func (a *Analyzer) AnalyzeFile(ctx context.Context, method, path string) (*Analysis, error) {
	rows, err := output.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return a.Analyze(ctx, method, rows)
}

// Analyze samples up to the configured number of failed rows and returns
// the service's assessment.
func (a *Analyzer) Analyze(ctx context.Context, method string, rows []output.Row) (*Analysis, error) {
	failures := SelectFailures(method, rows)
	if len(failures) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoFailures, method)
	}

	sample := make([]Failure, len(failures))
	copy(sample, failures)
	if a.Shuffle != nil {
		a.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
	}
	if len(sample) > a.maxExamples {
		sample = sample[:a.maxExamples]
	}

	logger.Info("analyzing failures", "method", method, "failures", len(failures), "sampled", len(sample))
	resp, err := a.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(analysisPrompt, formatFailures(sample))}},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze %s failures: %w", method, err)
	}

	an := &Analysis{Method: method, Failures: len(failures), Sampled: sample, Text: resp.Content}
	if a.store != nil {
		body := fmt.Sprintf("Analysis for %s\n%s\n%s\n", method, analysisRule, resp.Content)
		path, err := a.store.SaveText("analysis_"+method, body)
		if err != nil {
			return an, err
		}
		an.Path = path
	}
	return an, nil
}

// SelectFailures returns rows whose exact_match is false. Rows with a method
// column are filtered to method; the expected value is read from "correct"
// or "expected".
func SelectFailures(method string, rows []output.Row) []Failure {
	var out []Failure
	for _, r := range rows {
		if m, ok := r["method"]; ok && method != "" && m != method {
			continue
		}
		exact, err := strconv.ParseBool(strings.TrimSpace(r["exact_match"]))
		if err != nil || exact {
			continue
		}
		expected, ok := r["correct"]
		if !ok {
			expected = r["expected"]
		}
		out = append(out, Failure{Text: r["tweet"], Expected: expected, Extracted: r["extracted"]})
	}
	return out
}

func formatFailures(fs []Failure) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = fmt.Sprintf("Tweet: '%s'\nExpected: %s\nExtracted: %s\n", f.Text, f.Expected, f.Extracted)
	}
	return strings.Join(parts, "\n")
}
