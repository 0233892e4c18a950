package eval

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/internal/output"
	"github.com/jmylchreest/airlinebench/pkg/dataset"
	"github.com/jmylchreest/airlinebench/pkg/metrics"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

// Comparison is the outcome of running several strategies over one dataset.
type Comparison struct {
	RunID string

	// Runs holds successful runs in execution order.
	Runs    []*Run
	Summary []SummaryRow
	Errors  map[strategy.Name]error

	ResultsPath string
	SummaryPath string
}

// Metrics returns the aggregate metrics of each successful strategy.
func (c *Comparison) Metrics() map[strategy.Name]*metrics.BatchMetrics {
	out := make(map[strategy.Name]*metrics.BatchMetrics, len(c.Runs))
	for _, r := range c.Runs {
		out[r.Strategy] = r.Metrics
	}
	return out
}

// Failed reports whether any strategy failed.
func (c *Comparison) Failed() bool {
	return len(c.Errors) > 0
}

// Orchestrator runs strategies one after another through a Runner.
type Orchestrator struct {
	runner *Runner
	store  *output.Store
}

// NewOrchestrator creates an Orchestrator. store may be nil to skip the
// comparison tables.
func NewOrchestrator(runner *Runner, store *output.Store) *Orchestrator {
	return &Orchestrator{runner: runner, store: store}
}

// Compare runs strategies in order. A failing strategy is recorded in the
// summary and the remaining strategies still run. Only context cancellation
// or a persistence failure stops the comparison early.
func (o *Orchestrator) Compare(ctx context.Context, examples []dataset.Example, strategies []strategy.Strategy) (*Comparison, error) {
	cmp := &Comparison{
		RunID:  uuid.NewString(),
		Errors: make(map[strategy.Name]error),
	}
	log := logger.With("run_id", cmp.RunID)
	log.Info("comparison started", "strategies", len(strategies), "examples", len(examples))

	var details []output.Record
	for _, s := range strategies {
		name := s.Name()
		run, err := o.runner.Run(ctx, examples, s)
		if err != nil {
			if ctx.Err() != nil {
				return cmp, ctx.Err()
			}
			log.Warn("strategy failed", "strategy", string(name), "error", err)
			cmp.Errors[name] = err
			cmp.Summary = append(cmp.Summary, SummaryRow{
				Method: string(name),
				Status: StatusFailed,
				Error:  err.Error(),
			})
			continue
		}

		cmp.Runs = append(cmp.Runs, run)
		cmp.Summary = append(cmp.Summary, summarize(name, run.Metrics))
		for _, res := range run.Results {
			details = append(details, ComparisonRow{
				Method:     string(name),
				Text:       res.Text,
				Expected:   res.Expected,
				Extracted:  res.Extracted,
				ExactMatch: res.ExactMatch,
				Similarity: res.Similarity,
			})
		}
	}

	if o.store != nil {
		path, err := o.store.SaveTable("comparison_results", details)
		if err != nil {
			return cmp, fmt.Errorf("save comparison results: %w", err)
		}
		cmp.ResultsPath = path

		summary := make([]output.Record, len(cmp.Summary))
		for i, row := range cmp.Summary {
			summary[i] = row
		}
		path, err = o.store.SaveTable("comparison_summary", summary)
		if err != nil {
			return cmp, fmt.Errorf("save comparison summary: %w", err)
		}
		cmp.SummaryPath = path
	}

	log.Info("comparison finished", "succeeded", len(cmp.Runs), "failed", len(cmp.Errors))
	return cmp, nil
}

func summarize(name strategy.Name, m *metrics.BatchMetrics) SummaryRow {
	return SummaryRow{
		Method:        string(name),
		Status:        StatusOK,
		Accuracy:      m.Accuracy(),
		Similarity:    m.AvgSimilarity(),
		TotalTime:     m.TotalTime,
		TimePerItem:   m.AvgTimePerItem(),
		TotalTokens:   m.TotalTokens,
		TokensPerItem: m.AvgTokensPerItem(),
		TotalCost:     m.TotalCost(),
		CostPerItem:   m.AvgCostPerItem(),
	}
}
