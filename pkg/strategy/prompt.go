package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/pricing"
)

// Prompt is the shared implementation of the zero-, one- and few-shot
// strategies: one completion per text over a fixed template.
type Prompt struct {
	name        Name
	template    string
	client      llm.Completer
	rates       pricing.Table
	temperature float64
}

// NewPrompt creates a prompt-based strategy. name must have an entry in Templates.
func NewPrompt(name Name, client llm.Completer, rates pricing.Table, temperature float64) (*Prompt, error) {
	tmpl, ok := Templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not prompt-based", ErrUnknownStrategy, name)
	}
	if client == nil {
		return nil, fmt.Errorf("%s: completion client is required", name)
	}
	return &Prompt{
		name:        name,
		template:    tmpl,
		client:      client,
		rates:       rates,
		temperature: temperature,
	}, nil
}

func (p *Prompt) Name() Name                 { return p.name }
func (p *Prompt) Category() pricing.Category { return pricing.CategoryPromptBased }

// Extract implements Strategy.
func (p *Prompt) Extract(ctx context.Context, items []string) (*Batch, error) {
	rate, err := p.rates.Rate(p.Category())
	if err != nil {
		return nil, err
	}

	batch := newBatch(len(items), p.client.Model())
	for i, text := range items {
		started := time.Now()
		resp, err := p.client.Complete(ctx, llm.Request{
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: Render(p.template, text)}},
			Temperature: p.temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("%s item %d: %w", p.name, i, err)
		}
		if resp.Model != "" {
			batch.Model = resp.Model
		}
		batch.add(resp.Content, ItemUsage{
			Usage:   resp.Usage,
			Cost:    rate.Cost(resp.Usage),
			Elapsed: time.Since(started),
		})
	}
	return batch, nil
}
