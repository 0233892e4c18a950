package strategy

import (
	"context"
	"fmt"

	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/pricing"
)

// Deps carries everything a strategy may need. Only the fields used by the
// requested strategies have to be set.
type Deps struct {
	Completer llm.Completer
	Embedder  llm.Embedder
	Models    llm.ModelCatalog
	Rates     pricing.Table

	Temperature float64

	// TrainPath is the labelled corpus read by the embeddings strategy.
	TrainPath          string
	EmbeddingModel     string
	EmbeddingThreshold float64

	// ModelID selects the fine-tuned model; empty means discover.
	ModelID string
}

// Registry builds strategies by name from a shared set of dependencies.
type Registry struct {
	deps Deps
}

// NewRegistry creates a registry. A nil rate table is replaced by the defaults.
func NewRegistry(deps Deps) *Registry {
	if deps.Rates == nil {
		deps.Rates = pricing.DefaultTable()
	}
	return &Registry{deps: deps}
}

// Build constructs the strategy called name.
func (r *Registry) Build(name Name) (Strategy, error) {
	d := r.deps
	switch name {
	case ZeroShot, OneShot, FewShot:
		return NewPrompt(name, d.Completer, d.Rates, d.Temperature)
	case Embeddings:
		return NewEmbedding(d.Completer, d.Embedder, d.Rates, EmbeddingOptions{
			CorpusPath: d.TrainPath,
			Model:      d.EmbeddingModel,
			Threshold:  d.EmbeddingThreshold,
		})
	case FineTuned:
		return NewFineTuned(d.Completer, d.Models, d.Rates, d.ModelID)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// BuildAll constructs names in order.
func (r *Registry) BuildAll(names []Name) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, err := r.Build(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// BuildEach constructs names in order. A strategy that cannot be built is
// returned as an Unavailable carrying the build error, so callers running
// several strategies can report it alongside the others.
func (r *Registry) BuildEach(names []Name) []Strategy {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, err := r.Build(n)
		if err != nil {
			s = NewUnavailable(n, err)
		}
		out = append(out, s)
	}
	return out
}

// Unavailable stands in for a strategy that could not be built. Extract
// always fails with the build error.
type Unavailable struct {
	name Name
	err  error
}

// NewUnavailable wraps a build error for name.
func NewUnavailable(name Name, err error) *Unavailable {
	return &Unavailable{name: name, err: err}
}

func (u *Unavailable) Name() Name                 { return u.name }
func (u *Unavailable) Category() pricing.Category { return u.name.Category() }
func (u *Unavailable) Err() error                 { return u.err }

func (u *Unavailable) Extract(context.Context, []string) (*Batch, error) {
	return nil, u.err
}

// Categories returns the distinct pricing categories the named strategies
// bill against.
func Categories(names []Name) []pricing.Category {
	seen := map[pricing.Category]bool{}
	var out []pricing.Category
	add := func(c pricing.Category) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, n := range names {
		switch n {
		case ZeroShot, OneShot, FewShot:
			add(pricing.CategoryPromptBased)
		case Embeddings:
			add(pricing.CategoryEmbedding)
			add(pricing.CategoryPromptBased)
		case FineTuned:
			add(pricing.CategoryFineTuned)
		}
	}
	return out
}
