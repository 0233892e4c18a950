// Package strategy provides the interchangeable airline extraction strategies.
//
// Every strategy takes an ordered batch of texts and returns exactly one
// extracted string per text, plus the usage and cost of the service calls
// made for that text.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/pricing"
)

// Name identifies a strategy on the command line and in output files.
type Name string

const (
	ZeroShot   Name = "zero-shot"
	OneShot    Name = "one-shot"
	FewShot    Name = "few-shot"
	Embeddings Name = "embeddings"
	FineTuned  Name = "fine-tuned"
)

// CompareAll selects every strategy in All order.
const CompareAll = "compare-all"

// All lists the strategies in comparison order.
var All = []Name{ZeroShot, OneShot, FewShot, Embeddings, FineTuned}

var displayNames = map[Name]string{
	ZeroShot:   "Zero-shot",
	OneShot:    "One-shot",
	FewShot:    "Few-shot",
	Embeddings: "Embeddings",
	FineTuned:  "Fine-tuned",
}

// Display returns the human-readable name used in reports.
func (n Name) Display() string {
	if d, ok := displayNames[n]; ok {
		return d
	}
	return string(n)
}

// Category returns the pricing category the strategy's own calls bill
// against. Embeddings also bills its candidate prompt as prompt-based.
func (n Name) Category() pricing.Category {
	switch n {
	case Embeddings:
		return pricing.CategoryEmbedding
	case FineTuned:
		return pricing.CategoryFineTuned
	}
	return pricing.CategoryPromptBased
}

// NoAirlineFound is returned for texts that mention no airline.
const NoAirlineFound = "No airline found"

var (
	// ErrUnknownStrategy is returned for names outside All.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrConfigMissing marks a recoverable setup problem, distinct from a
	// service failure.
	ErrConfigMissing = errors.New("configuration missing")

	// ErrNoTrainingData is returned by the embeddings strategy when its
	// reference corpus cannot be read.
	ErrNoTrainingData = fmt.Errorf("%w: training data not found", ErrConfigMissing)

	// ErrNoModel is returned by the fine-tuned strategy when no model id is
	// configured and none can be discovered.
	ErrNoModel = fmt.Errorf("%w: no fine-tuned model id", ErrConfigMissing)

	// ErrNoEmbedder is returned by the embeddings strategy when the provider
	// offers no embeddings endpoint.
	ErrNoEmbedder = fmt.Errorf("%w: provider offers no embeddings", ErrConfigMissing)
)

// Parse validates a single strategy name.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := displayNames[n]; ok {
		return n, nil
	}
	return "", fmt.Errorf("%w: %q (valid: %s, %s)", ErrUnknownStrategy, s, joinNames(All), CompareAll)
}

// ParseSelection accepts a strategy name or CompareAll.
func ParseSelection(s string) ([]Name, error) {
	if strings.EqualFold(strings.TrimSpace(s), CompareAll) {
		out := make([]Name, len(All))
		copy(out, All)
		return out, nil
	}
	n, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return []Name{n}, nil
}

func joinNames(names []Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// Strategy extracts airline names from a batch of texts.
type Strategy interface {
	Name() Name
	Category() pricing.Category

	// Extract returns one result per input, in input order.
	Extract(ctx context.Context, items []string) (*Batch, error)
}

// Batch is the output of one Extract call. Results and Usage are aligned
// with the input.
type Batch struct {
	Results []string
	Usage   []ItemUsage

	// Model is the model that served the batch.
	Model string
}

// ItemUsage is the service usage attributed to one input text.
type ItemUsage struct {
	Usage   llm.Usage
	Cost    float64
	Elapsed time.Duration
}

func newBatch(n int, model string) *Batch {
	return &Batch{
		Results: make([]string, 0, n),
		Usage:   make([]ItemUsage, 0, n),
		Model:   model,
	}
}

func (b *Batch) add(result string, u ItemUsage) {
	if strings.TrimSpace(result) == "" {
		result = NoAirlineFound
	}
	b.Results = append(b.Results, result)
	b.Usage = append(b.Usage, u)
}
