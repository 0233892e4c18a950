package eval

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Result is one evaluated item.
type Result struct {
	Text       string
	Expected   string
	Extracted  string
	ExactMatch bool
	Similarity float64
}

var resultHeader = []string{"tweet", "correct", "extracted", "exact_match", "similarity"}

func (r Result) Header() []string { return resultHeader }

func (r Result) Fields() []string {
	return []string{r.Text, r.Expected, r.Extracted, strconv.FormatBool(r.ExactMatch), formatSimilarity(r.Similarity)}
}

// resultDoc is the structured-format shape of a Result. Numbers carry the
// same formatting as the CSV columns.
type resultDoc struct {
	Text       string `json:"tweet" yaml:"tweet"`
	Expected   string `json:"correct" yaml:"correct"`
	Extracted  string `json:"extracted" yaml:"extracted"`
	ExactMatch bool   `json:"exact_match" yaml:"exact_match"`
	Similarity string `json:"similarity" yaml:"similarity"`
}

func (r Result) doc() resultDoc {
	return resultDoc{r.Text, r.Expected, r.Extracted, r.ExactMatch, formatSimilarity(r.Similarity)}
}

func (r Result) MarshalJSON() ([]byte, error) { return json.Marshal(r.doc()) }
func (r Result) MarshalYAML() (any, error)    { return r.doc(), nil }

// ComparisonRow is one item of one strategy in a comparison run.
type ComparisonRow struct {
	Method     string
	Text       string
	Expected   string
	Extracted  string
	ExactMatch bool
	Similarity float64
}

var comparisonHeader = []string{"method", "tweet", "expected", "extracted", "exact_match", "similarity"}

func (r ComparisonRow) Header() []string { return comparisonHeader }

func (r ComparisonRow) Fields() []string {
	return []string{r.Method, r.Text, r.Expected, r.Extracted, strconv.FormatBool(r.ExactMatch), formatSimilarity(r.Similarity)}
}

type comparisonDoc struct {
	Method     string `json:"method" yaml:"method"`
	Text       string `json:"tweet" yaml:"tweet"`
	Expected   string `json:"expected" yaml:"expected"`
	Extracted  string `json:"extracted" yaml:"extracted"`
	ExactMatch bool   `json:"exact_match" yaml:"exact_match"`
	Similarity string `json:"similarity" yaml:"similarity"`
}

func (r ComparisonRow) doc() comparisonDoc {
	return comparisonDoc{r.Method, r.Text, r.Expected, r.Extracted, r.ExactMatch, formatSimilarity(r.Similarity)}
}

func (r ComparisonRow) MarshalJSON() ([]byte, error) { return json.Marshal(r.doc()) }
func (r ComparisonRow) MarshalYAML() (any, error)    { return r.doc(), nil }

// Status of a strategy in a comparison.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// SummaryRow holds one strategy's aggregate figures. For failed strategies
// only Method, Status and Error are meaningful.
type SummaryRow struct {
	Method        string
	Status        Status
	Accuracy      float64
	Similarity    float64
	TotalTime     time.Duration
	TimePerItem   time.Duration
	TotalTokens   int
	TokensPerItem float64
	TotalCost     float64
	CostPerItem   float64
	Error         string
}

var summaryHeader = []string{
	"method", "status", "accuracy", "similarity", "total_time", "time_per_item_ms",
	"total_tokens", "tokens_per_item", "total_cost", "cost_per_item", "error",
}

func (r SummaryRow) Header() []string { return summaryHeader }

func (r SummaryRow) Fields() []string {
	if r.Status == StatusFailed {
		return []string{r.Method, string(r.Status), "", "", "", "", "", "", "", "", r.Error}
	}
	return []string{
		r.Method,
		string(r.Status),
		fmt.Sprintf("%.1f", r.Accuracy),
		fmt.Sprintf("%.1f", r.Similarity),
		fmt.Sprintf("%.2f", r.TotalTime.Seconds()),
		fmt.Sprintf("%.1f", float64(r.TimePerItem)/float64(time.Millisecond)),
		strconv.Itoa(r.TotalTokens),
		fmt.Sprintf("%.1f", r.TokensPerItem),
		fmt.Sprintf("%.4f", r.TotalCost),
		fmt.Sprintf("%.4f", r.CostPerItem),
		r.Error,
	}
}

// summaryDoc mirrors the CSV summary columns. Failed rows carry only
// method, status and error.
type summaryDoc struct {
	Method        string `json:"method" yaml:"method"`
	Status        string `json:"status" yaml:"status"`
	Accuracy      string `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	Similarity    string `json:"similarity,omitempty" yaml:"similarity,omitempty"`
	TotalTime     string `json:"total_time,omitempty" yaml:"total_time,omitempty"`
	TimePerItemMs string `json:"time_per_item_ms,omitempty" yaml:"time_per_item_ms,omitempty"`
	TotalTokens   string `json:"total_tokens,omitempty" yaml:"total_tokens,omitempty"`
	TokensPerItem string `json:"tokens_per_item,omitempty" yaml:"tokens_per_item,omitempty"`
	TotalCost     string `json:"total_cost,omitempty" yaml:"total_cost,omitempty"`
	CostPerItem   string `json:"cost_per_item,omitempty" yaml:"cost_per_item,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r SummaryRow) doc() summaryDoc {
	f := r.Fields()
	return summaryDoc{f[0], f[1], f[2], f[3], f[4], f[5], f[6], f[7], f[8], f[9], f[10]}
}

func (r SummaryRow) MarshalJSON() ([]byte, error) { return json.Marshal(r.doc()) }
func (r SummaryRow) MarshalYAML() (any, error)    { return r.doc(), nil }

func formatSimilarity(s float64) string {
	return strconv.FormatFloat(s, 'f', 1, 64)
}
