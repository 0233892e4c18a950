package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/pkg/dataset"
	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/pricing"
)

// DefaultThreshold is the minimum cosine similarity between a candidate and
// the text for the candidate to be kept.
const DefaultThreshold = 0.8

// Embedding asks the completion service for candidate names, then keeps the
// candidates whose embedding is close to the embedding of the text.
type Embedding struct {
	client         llm.Completer
	embedder       llm.Embedder
	rates          pricing.Table
	corpusPath     string
	embeddingModel string
	threshold      float64

	known []string
}

// EmbeddingOptions configures NewEmbedding.
type EmbeddingOptions struct {
	// CorpusPath is the labelled training file the known airline list is read from.
	CorpusPath string
	Model      string
	// Threshold defaults to DefaultThreshold when zero.
	Threshold float64
}

// NewEmbedding creates the embeddings strategy.
func NewEmbedding(client llm.Completer, embedder llm.Embedder, rates pricing.Table, opts EmbeddingOptions) (*Embedding, error) {
	if client == nil {
		return nil, fmt.Errorf("%s: completion client is required", Embeddings)
	}
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	if opts.Model == "" {
		opts.Model = llm.DefaultEmbeddingModel
	}
	switch {
	case opts.Threshold == 0:
		opts.Threshold = DefaultThreshold
	case opts.Threshold < 0 || opts.Threshold > 1:
		return nil, fmt.Errorf("%s: threshold %v outside (0, 1]", Embeddings, opts.Threshold)
	}
	return &Embedding{
		client:         client,
		embedder:       embedder,
		rates:          rates,
		corpusPath:     opts.CorpusPath,
		embeddingModel: opts.Model,
		threshold:      opts.Threshold,
	}, nil
}

func (e *Embedding) Name() Name                 { return Embeddings }
func (e *Embedding) Category() pricing.Category { return pricing.CategoryEmbedding }

func (e *Embedding) knownAirlines() ([]string, error) {
	if e.known != nil {
		return e.known, nil
	}
	if e.corpusPath == "" {
		return nil, ErrNoTrainingData
	}
	examples, err := dataset.Load(e.corpusPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTrainingData, err)
	}
	e.known = dataset.KnownAirlines(examples)
	return e.known, nil
}

// Extract implements Strategy. Each text costs two embedding calls and one
// completion; embedding calls are priced at the embedding rate and the
// completion at the prompt-based rate.
func (e *Embedding) Extract(ctx context.Context, items []string) (*Batch, error) {
	known, err := e.knownAirlines()
	if err != nil {
		return nil, err
	}
	embedRate, err := e.rates.Rate(pricing.CategoryEmbedding)
	if err != nil {
		return nil, err
	}
	chatRate, err := e.rates.Rate(pricing.CategoryPromptBased)
	if err != nil {
		return nil, err
	}

	batch := newBatch(len(items), e.client.Model())
	for i, text := range items {
		started := time.Now()

		textEmb, err := e.embedder.Embed(ctx, []string{text}, e.embeddingModel)
		if err != nil {
			return nil, fmt.Errorf("%s item %d: embed text: %w", Embeddings, i, err)
		}
		if len(textEmb.Vectors) != 1 {
			return nil, fmt.Errorf("%s item %d: expected 1 vector, got %d", Embeddings, i, len(textEmb.Vectors))
		}

		chat, err := e.client.Complete(ctx, llm.Request{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: candidateSystemPrompt},
				{Role: llm.RoleUser, Content: candidatePrompt(known, text)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%s item %d: candidates: %w", Embeddings, i, err)
		}

		candidates := splitCandidates(chat.Content)
		embedUsage := textEmb.Usage
		var matches []string
		if len(candidates) > 0 {
			candEmb, err := e.embedder.Embed(ctx, candidates, e.embeddingModel)
			if err != nil {
				return nil, fmt.Errorf("%s item %d: embed candidates: %w", Embeddings, i, err)
			}
			embedUsage = embedUsage.Add(candEmb.Usage)
			for j, vec := range candEmb.Vectors {
				if j >= len(candidates) {
					break
				}
				score := Cosine(textEmb.Vectors[0], vec)
				logger.Debug("candidate scored", "candidate", candidates[j], "cosine", score)
				if score > e.threshold {
					matches = append(matches, candidates[j])
				}
			}
		}

		result := NoAirlineFound
		if len(matches) > 0 {
			result = strings.Join(matches, ", ")
		}
		batch.add(result, ItemUsage{
			Usage:   embedUsage.Add(chat.Usage),
			Cost:    embedRate.Cost(embedUsage) + chatRate.Cost(chat.Usage),
			Elapsed: time.Since(started),
		})
	}
	return batch, nil
}

func splitCandidates(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if c := strings.TrimSpace(line); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
