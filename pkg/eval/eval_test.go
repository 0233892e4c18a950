package eval

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/airlinebench/internal/output"
	"github.com/jmylchreest/airlinebench/pkg/dataset"
	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/pricing"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

// stubStrategy returns canned results or an error.
type stubStrategy struct {
	name    strategy.Name
	results []string
	model   string
	err     error
	calls   int
}

func (s *stubStrategy) Name() strategy.Name        { return s.name }
func (s *stubStrategy) Category() pricing.Category { return pricing.CategoryPromptBased }

func (s *stubStrategy) Extract(_ context.Context, _ []string) (*strategy.Batch, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b := &strategy.Batch{Model: s.model}
	for i := range s.results {
		b.Results = append(b.Results, s.results[i])
		b.Usage = append(b.Usage, strategy.ItemUsage{
			Usage:   llm.Usage{PromptTokens: 8, CompletionTokens: 2, TotalTokens: 10},
			Cost:    0.001,
			Elapsed: 10 * time.Millisecond,
		})
	}
	return b, nil
}

func examples() []dataset.Example {
	return []dataset.Example{
		{Text: "@united lost my bag", Labels: []string{"United Airlines"}},
		{Text: "@SouthwestAir and @JetBlue", Labels: []string{"Southwest Airlines", "JetBlue Airways"}},
	}
}

func fixedStore(t *testing.T, format output.Format) *output.Store {
	t.Helper()
	s := output.NewStore(t.TempDir(), format)
	s.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestRunner_Run(t *testing.T) {
	store := fixedStore(t, output.FormatCSV)
	s := &stubStrategy{name: strategy.FewShot, model: "gpt-3.5-turbo", results: []string{
		"United Airlines",
		"Southwest Airlines",
	}}

	run, err := NewRunner(WithStore(store)).Run(context.Background(), examples(), s)
	require.NoError(t, err)

	require.Len(t, run.Results, 2)
	assert.Equal(t, "@united lost my bag", run.Results[0].Text)
	assert.True(t, run.Results[0].ExactMatch)
	assert.Equal(t, 100.0, run.Results[0].Similarity)
	assert.Equal(t, "Southwest Airlines, JetBlue Airways", run.Results[1].Expected)
	assert.False(t, run.Results[1].ExactMatch)

	m := run.Metrics
	assert.Equal(t, "Few-shot", m.Method)
	assert.Equal(t, 2, m.TotalItems)
	assert.Equal(t, 1, m.ExactMatches)
	assert.Equal(t, 20, m.TotalTokens)
	assert.Equal(t, 20*time.Millisecond, m.TotalTime)
	assert.InDelta(t, 50.0, m.Accuracy(), 1e-9)

	assert.Equal(t, "results_few-shot_2024-01-02_03-04-05.csv", filepath.Base(run.Path))
	data, err := os.ReadFile(run.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tweet,correct,extracted,exact_match,similarity", lines[0])
	assert.Equal(t, "@united lost my bag,United Airlines,United Airlines,true,100.0", lines[1])
}

func TestRunner_CountsSetupTime(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := []time.Time{t0, t0.Add(150 * time.Millisecond)}
	r := NewRunner()
	r.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	// Items report 10ms each; the remaining 130ms went to setup.
	s := &stubStrategy{name: strategy.Embeddings, results: []string{"a", "b"}}
	run, err := r.Run(context.Background(), examples(), s)
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, run.Metrics.TotalTime)
	assert.Equal(t, 75*time.Millisecond, run.Metrics.AvgTimePerItem())
}

func TestRunner_LengthMismatch(t *testing.T) {
	s := &stubStrategy{name: strategy.ZeroShot, results: []string{"United Airlines"}}

	_, err := NewRunner().Run(context.Background(), examples(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestRunner_StrategyError(t *testing.T) {
	s := &stubStrategy{name: strategy.FineTuned, err: strategy.ErrNoModel}

	_, err := NewRunner().Run(context.Background(), examples(), s)
	assert.ErrorIs(t, err, ErrStrategyFailed)
	assert.ErrorIs(t, err, strategy.ErrConfigMissing)
}

func TestRunner_Canonicalize(t *testing.T) {
	s := &stubStrategy{name: strategy.ZeroShot, results: []string{"1. United Airlines", "SouthwestAir"}}
	ex := examples()[:1]
	s.results = s.results[:1]

	plain, err := NewRunner().Run(context.Background(), ex, s)
	require.NoError(t, err)
	assert.False(t, plain.Results[0].ExactMatch)

	canon, err := NewRunner(WithCanonicalize(true)).Run(context.Background(), ex, s)
	require.NoError(t, err)
	assert.True(t, canon.Results[0].ExactMatch)
	assert.Equal(t, "1. United Airlines", canon.Results[0].Extracted, "raw extraction is reported")
}

func TestRunner_AnnouncesModelOnce(t *testing.T) {
	var announced []string
	r := NewRunner(WithAnnouncer(func(_ strategy.Name, model string) {
		announced = append(announced, model)
	}))
	s := &stubStrategy{name: strategy.FineTuned, model: "ft:abc", results: []string{"a", "b"}}

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background(), examples(), s)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"ft:abc"}, announced)
}

func TestOrchestrator_FailureDoesNotAbort(t *testing.T) {
	store := fixedStore(t, output.FormatCSV)
	a := &stubStrategy{name: strategy.Embeddings, err: errors.New("boom")}
	b := &stubStrategy{name: strategy.ZeroShot, results: []string{"United Airlines", "No airline found"}}

	o := NewOrchestrator(NewRunner(WithStore(store)), store)
	cmp, err := o.Compare(context.Background(), examples(), []strategy.Strategy{a, b})
	require.NoError(t, err)

	require.Len(t, cmp.Summary, 2)
	assert.Equal(t, "embeddings", cmp.Summary[0].Method)
	assert.Equal(t, StatusFailed, cmp.Summary[0].Status)
	assert.Contains(t, cmp.Summary[0].Error, "boom")

	assert.Equal(t, "zero-shot", cmp.Summary[1].Method)
	assert.Equal(t, StatusOK, cmp.Summary[1].Status)
	assert.InDelta(t, 50.0, cmp.Summary[1].Accuracy, 1e-9)
	assert.Equal(t, 20, cmp.Summary[1].TotalTokens)

	assert.True(t, cmp.Failed())
	assert.ErrorIs(t, cmp.Errors[strategy.Embeddings], ErrStrategyFailed)
	require.Len(t, cmp.Runs, 1)
	assert.Contains(t, cmp.Metrics(), strategy.ZeroShot)
	assert.NotEmpty(t, cmp.RunID)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	rows, err := output.ReadFile(cmp.SummaryPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "failed", rows[0]["status"])
	assert.Equal(t, "", rows[0]["accuracy"])
	assert.Equal(t, "50.0", rows[1]["accuracy"])

	details, err := output.ReadFile(cmp.ResultsPath)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "zero-shot", details[0]["method"])
	assert.Equal(t, "United Airlines", details[0]["expected"])
}

// completionOnly builds every strategy for a provider that offers chat
// completions and nothing else.
func completionOnly() []strategy.Strategy {
	reg := strategy.NewRegistry(strategy.Deps{Completer: &stubCompleter{reply: "United Airlines"}})
	return reg.BuildEach(strategy.All)
}

func TestOrchestrator_UnbuildableStrategyIsReported(t *testing.T) {
	store := fixedStore(t, output.FormatCSV)
	cmp, err := NewOrchestrator(NewRunner(), store).Compare(context.Background(), examples(), completionOnly())
	require.NoError(t, err)

	require.Len(t, cmp.Summary, len(strategy.All))
	for i, n := range strategy.All {
		assert.Equal(t, string(n), cmp.Summary[i].Method)
	}
	assert.Equal(t, StatusOK, cmp.Summary[0].Status)
	assert.Equal(t, StatusFailed, cmp.Summary[3].Status)
	assert.Contains(t, cmp.Summary[3].Error, "no embeddings")
	assert.ErrorIs(t, cmp.Errors[strategy.Embeddings], strategy.ErrNoEmbedder)
	assert.ErrorIs(t, cmp.Errors[strategy.Embeddings], strategy.ErrConfigMissing)
	assert.Equal(t, StatusFailed, cmp.Summary[4].Status)
	assert.ErrorIs(t, cmp.Errors[strategy.FineTuned], strategy.ErrNoModel)
	require.Len(t, cmp.Runs, 3)

	rows, err := output.ReadFile(cmp.SummaryPath)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "embeddings", rows[3]["method"])
	assert.Equal(t, "failed", rows[3]["status"])
}

func TestProbe_UnbuildableStrategy(t *testing.T) {
	rows := Probe(context.Background(), "@united", completionOnly())
	require.Len(t, rows, len(strategy.All))

	assert.Equal(t, "United Airlines", rows[0].Extracted)
	assert.Equal(t, strategy.Embeddings, rows[3].Method)
	assert.Equal(t, "Skipping (no embeddings API)", rows[3].Extracted)
	assert.ErrorIs(t, rows[3].Err, strategy.ErrConfigMissing)
	assert.Equal(t, "Skipping (no model ID)", rows[4].Extracted)
}

func TestOrchestrator_PreservesOrder(t *testing.T) {
	names := []strategy.Name{strategy.FewShot, strategy.ZeroShot, strategy.OneShot}
	var ss []strategy.Strategy
	for _, n := range names {
		ss = append(ss, &stubStrategy{name: n, results: []string{"x", "y"}})
	}

	cmp, err := NewOrchestrator(NewRunner(), nil).Compare(context.Background(), examples(), ss)
	require.NoError(t, err)
	require.Len(t, cmp.Runs, 3)
	for i, r := range cmp.Runs {
		assert.Equal(t, names[i], r.Strategy)
	}
	assert.Empty(t, cmp.SummaryPath)
}

func TestOrchestrator_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &stubStrategy{name: strategy.ZeroShot, err: context.Canceled}
	b := &stubStrategy{name: strategy.OneShot, results: []string{"x", "y"}}

	_, err := NewOrchestrator(NewRunner(), nil).Compare(ctx, examples(), []strategy.Strategy{a, b})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, b.calls)
}

func TestProbe(t *testing.T) {
	ss := []strategy.Strategy{
		&stubStrategy{name: strategy.ZeroShot, results: []string{"United Airlines"}},
		&stubStrategy{name: strategy.Embeddings, err: strategy.ErrNoTrainingData},
		&stubStrategy{name: strategy.FineTuned, err: strategy.ErrNoModel},
		&stubStrategy{name: strategy.FewShot, err: errors.New("rate limited")},
	}
	rows := Probe(context.Background(), "@united", ss)
	require.Len(t, rows, 4)

	assert.Equal(t, "United Airlines", rows[0].Extracted)
	assert.Equal(t, 10, rows[0].Tokens)
	assert.NoError(t, rows[0].Err)
	assert.Equal(t, "Skipping (training data not found)", rows[1].Extracted)
	assert.Equal(t, "Skipping (no model ID)", rows[2].Extracted)
	assert.Equal(t, "Error: rate limited", rows[3].Extracted)

	var buf bytes.Buffer
	require.NoError(t, RenderProbe(&buf, "@united", rows))
	out := buf.String()
	assert.Contains(t, out, "Tweet: @united")
	assert.Contains(t, out, "Skipping (training data not...")
	assert.Contains(t, out, "zero-shot       United Airlines")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 30))
	assert.Equal(t, strings.Repeat("a", 30), truncate(strings.Repeat("a", 30), 30))
	assert.Equal(t, strings.Repeat("a", 27)+"...", truncate(strings.Repeat("a", 31), 30))
}

type stubCompleter struct {
	prompt string
	reply  string
	err    error
}

func (c *stubCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.prompt = req.Messages[0].Content
	return &llm.Response{Content: c.reply}, nil
}
func (c *stubCompleter) Name() string  { return "stub" }
func (c *stubCompleter) Model() string { return "stub-model" }

func TestAnalyzer_Analyze(t *testing.T) {
	store := fixedStore(t, output.FormatCSV)
	client := &stubCompleter{reply: "1. Abbreviations"}
	a := NewAnalyzer(client, store, 2)
	a.Shuffle = nil

	rows := []output.Row{
		{"tweet": "t1", "correct": "United Airlines", "extracted": "United", "exact_match": "false"},
		{"tweet": "t2", "correct": "Delta Air Lines", "extracted": "Delta Air Lines", "exact_match": "true"},
		{"tweet": "t3", "correct": "US Airways", "extracted": "USAir", "exact_match": "False"},
		{"tweet": "t4", "correct": "JetBlue Airways", "extracted": "JetBlue", "exact_match": "false"},
	}
	an, err := a.Analyze(context.Background(), "zero-shot", rows)
	require.NoError(t, err)

	assert.Equal(t, 3, an.Failures)
	assert.Len(t, an.Sampled, 2)
	assert.Contains(t, client.prompt, "Tweet: 't1'\nExpected: United Airlines\nExtracted: United")
	assert.NotContains(t, client.prompt, "t2")
	assert.NotContains(t, client.prompt, "t4", "sample is capped")
	assert.Contains(t, client.prompt, "1. Common error patterns")

	assert.Equal(t, "analysis_zero-shot_2024-01-02_03-04-05.txt", filepath.Base(an.Path))
	data, err := os.ReadFile(an.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Analysis for zero-shot\n"+analysisRule+"\n1. Abbreviations"))
}

func TestAnalyzer_NoFailures(t *testing.T) {
	a := NewAnalyzer(&stubCompleter{}, nil, 0)
	_, err := a.Analyze(context.Background(), "few-shot", []output.Row{
		{"tweet": "t", "correct": "x", "extracted": "x", "exact_match": "true"},
	})
	assert.ErrorIs(t, err, ErrNoFailures)
}

func TestSelectFailures_ComparisonTable(t *testing.T) {
	rows := []output.Row{
		{"method": "zero-shot", "tweet": "a", "expected": "X", "extracted": "Y", "exact_match": "false"},
		{"method": "few-shot", "tweet": "b", "expected": "X", "extracted": "Z", "exact_match": "false"},
	}
	got := SelectFailures("few-shot", rows)
	require.Len(t, got, 1)
	assert.Equal(t, Failure{Text: "b", Expected: "X", Extracted: "Z"}, got[0])
}

func TestAnalyzer_AnalyzeFileFromRunnerOutput(t *testing.T) {
	store := fixedStore(t, output.FormatJSON)
	s := &stubStrategy{name: strategy.OneShot, results: []string{"United", "Southwest Airlines, JetBlue Airways"}}
	run, err := NewRunner(WithStore(store)).Run(context.Background(), examples(), s)
	require.NoError(t, err)

	client := &stubCompleter{reply: "ok"}
	an, err := NewAnalyzer(client, nil, 10).AnalyzeFile(context.Background(), "one-shot", run.Path)
	require.NoError(t, err)
	assert.Equal(t, 1, an.Failures)
	assert.Contains(t, client.prompt, "Extracted: United\n")
}

func TestSummaryRow_Fields(t *testing.T) {
	row := SummaryRow{
		Method: "few-shot", Status: StatusOK, Accuracy: 33.333, Similarity: 50,
		TotalTime: 1500 * time.Millisecond, TimePerItem: 500 * time.Millisecond,
		TotalTokens: 300, TokensPerItem: 100, TotalCost: 0.0025, CostPerItem: 0.00083,
	}
	assert.Equal(t, []string{"few-shot", "ok", "33.3", "50.0", "1.50", "500.0", "300", "100.0", "0.0025", "0.0008", ""}, row.Fields())
	assert.Len(t, row.Header(), len(row.Fields()))
}

func TestRecords_StructuredFormatsMatchCSV(t *testing.T) {
	recs := []output.Record{
		Result{Text: "@united", Expected: "United Airlines", Extracted: "United Airlines", ExactMatch: true, Similarity: 100},
		ComparisonRow{Method: "zero-shot", Text: "@delta", Expected: "Delta Air Lines", Extracted: "Delta", Similarity: 50},
		SummaryRow{
			Method: "few-shot", Status: StatusOK, Accuracy: 50, Similarity: 75,
			TotalTime: 1500 * time.Millisecond, TimePerItem: 750 * time.Millisecond,
			TotalTokens: 20, TokensPerItem: 10, TotalCost: 0.002, CostPerItem: 0.001,
		},
		SummaryRow{Method: "embeddings", Status: StatusFailed, Error: "boom"},
	}

	for _, format := range []output.Format{output.FormatJSON, output.FormatJSONL, output.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, output.WriteTable(&buf, format, recs))
			rows, err := output.Read(&buf, format)
			require.NoError(t, err)
			require.Len(t, rows, 4)

			assert.Equal(t, "100.0", rows[0]["similarity"])
			assert.Equal(t, "true", rows[0]["exact_match"])
			assert.Equal(t, "50.0", rows[1]["similarity"])
			assert.Equal(t, "1.50", rows[2]["total_time"])
			assert.Equal(t, "750.0", rows[2]["time_per_item_ms"])
			assert.Equal(t, "0.0020", rows[2]["total_cost"])
			assert.Equal(t, "failed", rows[3]["status"])
			assert.Equal(t, "boom", rows[3]["error"])
			assert.NotContains(t, rows[3], "accuracy")
		})
	}
}
