// Package eval runs extraction strategies over labelled datasets, scores
// them and persists the results.
package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/internal/output"
	"github.com/jmylchreest/airlinebench/pkg/dataset"
	"github.com/jmylchreest/airlinebench/pkg/matcher"
	"github.com/jmylchreest/airlinebench/pkg/metrics"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

var (
	// ErrContractViolation is returned when a strategy breaks the one
	// result per input rule.
	ErrContractViolation = errors.New("contract violation")

	// ErrStrategyFailed wraps any error returned by a strategy.
	ErrStrategyFailed = errors.New("strategy failed")
)

// Run is the outcome of one strategy over one dataset.
type Run struct {
	Strategy strategy.Name
	Model    string
	Results  []Result
	Metrics  *metrics.BatchMetrics

	// Path is the persisted results table, empty without a store.
	Path string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore persists every run's results table.
func WithStore(s *output.Store) RunnerOption {
	return func(r *Runner) {
		r.store = s
	}
}

// WithCanonicalize cleans extracted names with matcher.CleanAirlineName
// before scoring. The raw extraction is still reported.
func WithCanonicalize(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.canonicalize = enabled
	}
}

// WithAnnouncer sets a callback invoked the first time each model is seen.
func WithAnnouncer(fn func(name strategy.Name, model string)) RunnerOption {
	return func(r *Runner) {
		r.announce = fn
	}
}

// Runner evaluates one strategy at a time. It is not safe for concurrent use.
type Runner struct {
	store        *output.Store
	canonicalize bool
	announce     func(strategy.Name, string)
	announced    map[string]bool

	now func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{announced: make(map[string]bool), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run extracts every example with s, scores each result against its labels
// and persists the results table.
func (r *Runner) Run(ctx context.Context, examples []dataset.Example, s strategy.Strategy) (*Run, error) {
	name := s.Name()
	log := logger.With("strategy", string(name))
	log.Info("evaluation started", "examples", len(examples))

	start := r.now()
	batch, err := s.Extract(ctx, dataset.Texts(examples))
	wall := r.now().Sub(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStrategyFailed, name, err)
	}
	if len(batch.Results) != len(examples) || len(batch.Usage) != len(examples) {
		return nil, fmt.Errorf("%w: %s returned %d results and %d usage records for %d inputs",
			ErrContractViolation, name, len(batch.Results), len(batch.Usage), len(examples))
	}
	r.announceModel(name, batch.Model)

	m := metrics.New(name.Display())
	results := make([]Result, len(examples))
	var itemTime time.Duration
	for i, ex := range examples {
		extracted := batch.Results[i]
		scored := extracted
		if r.canonicalize {
			scored = matcher.CleanAirlineName(extracted)
		}
		expected := ex.Expected()
		exact, sim := matcher.Match(scored, expected)

		results[i] = Result{
			Text:       ex.Text,
			Expected:   expected,
			Extracted:  extracted,
			ExactMatch: exact,
			Similarity: round1(sim),
		}
		u := batch.Usage[i]
		itemTime += u.Elapsed
		m.Record(metrics.Item{
			Usage:      u.Usage,
			Cost:       u.Cost,
			Elapsed:    u.Elapsed,
			Similarity: sim,
			ExactMatch: exact,
		})
	}

	// Setup inside Extract (corpus loading, model discovery) counts toward
	// the total but not toward any item.
	m.AddTime(wall - itemTime)

	run := &Run{Strategy: name, Model: batch.Model, Results: results, Metrics: m}
	if r.store != nil {
		path, err := r.store.SaveTable("results_"+string(name), resultRecords(results))
		if err != nil {
			return nil, fmt.Errorf("save %s results: %w", name, err)
		}
		run.Path = path
	}
	log.Info("evaluation finished",
		"accuracy", m.Accuracy(),
		"similarity", m.AvgSimilarity(),
		"tokens", m.TotalTokens,
		"cost", m.TotalCost())
	return run, nil
}

func (r *Runner) announceModel(name strategy.Name, model string) {
	if model == "" || r.announced[model] {
		return
	}
	r.announced[model] = true
	logger.Info("using model", "strategy", string(name), "model", model)
	if r.announce != nil {
		r.announce(name, model)
	}
}

func resultRecords(results []Result) []output.Record {
	recs := make([]output.Record, len(results))
	for i, res := range results {
		recs[i] = res
	}
	return recs
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
