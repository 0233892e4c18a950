package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/airlinebench/pkg/finetune"
	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/pricing"
)

// FineTunedModel runs each text through a fine-tuned chat model. When no
// model id is configured the first fine-tuned model in the catalog is used.
type FineTunedModel struct {
	client  llm.Completer
	catalog llm.ModelCatalog
	rates   pricing.Table
	modelID string
}

// NewFineTuned creates the fine-tuned strategy. catalog may be nil when
// modelID is set.
func NewFineTuned(client llm.Completer, catalog llm.ModelCatalog, rates pricing.Table, modelID string) (*FineTunedModel, error) {
	if client == nil {
		return nil, fmt.Errorf("%s: completion client is required", FineTuned)
	}
	return &FineTunedModel{client: client, catalog: catalog, rates: rates, modelID: modelID}, nil
}

func (f *FineTunedModel) Name() Name                 { return FineTuned }
func (f *FineTunedModel) Category() pricing.Category { return pricing.CategoryFineTuned }

// ResolveModel returns the configured model id or discovers one.
func (f *FineTunedModel) ResolveModel(ctx context.Context) (string, error) {
	if f.modelID != "" {
		return f.modelID, nil
	}
	if f.catalog == nil {
		return "", ErrNoModel
	}
	ids, err := finetune.ListFineTuned(ctx, f.catalog)
	if err != nil {
		return "", fmt.Errorf("discover fine-tuned model: %w", err)
	}
	if len(ids) == 0 {
		return "", ErrNoModel
	}
	f.modelID = ids[0]
	return f.modelID, nil
}

// Extract implements Strategy.
func (f *FineTunedModel) Extract(ctx context.Context, items []string) (*Batch, error) {
	model, err := f.ResolveModel(ctx)
	if err != nil {
		return nil, err
	}
	rate, err := f.rates.Rate(f.Category())
	if err != nil {
		return nil, err
	}

	batch := newBatch(len(items), model)
	for i, text := range items {
		started := time.Now()
		resp, err := f.client.Complete(ctx, llm.Request{
			Model: model,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: finetune.SystemPrompt},
				{Role: llm.RoleUser, Content: finetune.UserPrompt(text)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%s item %d: %w", FineTuned, i, err)
		}
		batch.add(resp.Content, ItemUsage{
			Usage:   resp.Usage,
			Cost:    rate.Cost(resp.Usage),
			Elapsed: time.Since(started),
		})
	}
	return batch, nil
}
