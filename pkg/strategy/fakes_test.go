package strategy

import (
	"context"
	"errors"

	"github.com/jmylchreest/airlinebench/pkg/llm"
)

type fakeCompleter struct {
	model    string
	reply    func(req llm.Request) (string, error)
	usage    llm.Usage
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	content, err := f.reply(req)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = f.model
	}
	return &llm.Response{Content: content, Usage: f.usage, Model: model}, nil
}

func (f *fakeCompleter) Name() string  { return "fake" }
func (f *fakeCompleter) Model() string { return f.model }

// fakeEmbedder maps texts to fixed vectors; unknown texts get vecs["*"].
type fakeEmbedder struct {
	vecs  map[string][]float64
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string, _ string) (*llm.EmbeddingResponse, error) {
	f.calls = append(f.calls, inputs)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(inputs))
	for i, in := range inputs {
		v, ok := f.vecs[in]
		if !ok {
			v = f.vecs["*"]
		}
		out[i] = v
	}
	n := len(inputs) * 10
	return &llm.EmbeddingResponse{Vectors: out, Usage: llm.Usage{PromptTokens: n, TotalTokens: n}}, nil
}

type fakeCatalog struct {
	models []llm.ModelInfo
	err    error
}

func (f *fakeCatalog) ListModels(context.Context) ([]llm.ModelInfo, error) {
	return f.models, f.err
}

func (f *fakeCatalog) RetrieveModel(_ context.Context, id string) (*llm.ModelInfo, error) {
	for _, m := range f.models {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, llm.ErrModelNotFound
}

var errService = errors.New("service unavailable")

func lastUserContent(req llm.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}
