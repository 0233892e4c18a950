// Package pricing holds the per-category token rates used for cost attribution.
package pricing

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/airlinebench/pkg/llm"
)

// Category groups strategies that share a price list.
type Category string

const (
	CategoryPromptBased Category = "prompt-based"
	CategoryEmbedding   Category = "embedding"
	CategoryFineTuned   Category = "fine-tuned"
)

// Categories lists every known category.
var Categories = []Category{CategoryPromptBased, CategoryEmbedding, CategoryFineTuned}

// ErrMissingRate is returned when a category has no entry in the table.
var ErrMissingRate = errors.New("no cost rate configured")

// Rate is a price in currency per 1000 tokens.
type Rate struct {
	Input  float64 `mapstructure:"input" yaml:"input" json:"input" validate:"gte=0"`
	Output float64 `mapstructure:"output" yaml:"output" json:"output" validate:"gte=0"`
}

// Cost prices a single call: (prompt×input + completion×output) / 1000.
func (r Rate) Cost(u llm.Usage) float64 {
	return (float64(u.PromptTokens)*r.Input + float64(u.CompletionTokens)*r.Output) / 1000
}

// Table maps categories to rates. It is read-only once built.
type Table map[Category]Rate

// DefaultTable returns the reference rates for gpt-3.5-turbo, ada-002
// embeddings and fine-tuned gpt-3.5-turbo.
func DefaultTable() Table {
	return Table{
		CategoryPromptBased: {Input: 0.0015, Output: 0.002},
		CategoryEmbedding:   {Input: 0.0001, Output: 0.0001},
		CategoryFineTuned:   {Input: 0.003, Output: 0.006},
	}
}

// Rate returns the rate for cat or ErrMissingRate.
func (t Table) Rate(cat Category) (Rate, error) {
	r, ok := t[cat]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s", ErrMissingRate, cat)
	}
	return r, nil
}

// Cost prices a call made under cat.
func (t Table) Cost(cat Category, u llm.Usage) (float64, error) {
	r, err := t.Rate(cat)
	if err != nil {
		return 0, err
	}
	return r.Cost(u), nil
}

// Validate checks that every category in use has an entry.
func (t Table) Validate(inUse ...Category) error {
	var errs []error
	for _, c := range inUse {
		if _, err := t.Rate(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
