package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// DefaultEmbeddingModel is used when Embed is called without a model.
const DefaultEmbeddingModel = "text-embedding-ada-002"

// OpenAIProvider implements Completer, Embedder, FineTuner and ModelCatalog
// against the OpenAI API.
type OpenAIProvider struct {
	client   openai.Client
	model    string
	cfg      ProviderConfig
	limiter  *rate.Limiter
	observer LLMObserver
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}

	// Failed calls abort the current strategy, so the SDK must not retry.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT3_5Turbo)
	}

	p := &OpenAIProvider{
		client:   client,
		model:    model,
		cfg:      cfg,
		observer: cfg.Observer,
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// Complete sends a chat completion request to OpenAI.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	ev := LLMCallEvent{Kind: CallCompletion, Provider: p.Name(), Model: model, Inputs: len(req.Messages), StartedAt: time.Now()}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		ev.Error = err
		notify(ctx, p.observer, ev)
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		ev.Error = ErrEmptyResponse
		notify(ctx, p.observer, ev)
		return nil, ErrEmptyResponse
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	ev.Usage = usage
	ev.Model = resp.Model
	notify(ctx, p.observer, ev)

	return &Response{
		Content:      strings.TrimSpace(resp.Choices[0].Message.Content),
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage:        usage,
		Model:        resp.Model,
		Duration:     time.Since(ev.StartedAt),
	}, nil
}

// Embed returns one vector per input. Embedding calls only consume prompt tokens.
func (p *OpenAIProvider) Embed(ctx context.Context, inputs []string, model string) (*EmbeddingResponse, error) {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if len(inputs) == 0 {
		return &EmbeddingResponse{Model: model}, nil
	}
	ev := LLMCallEvent{Kind: CallEmbedding, Provider: p.Name(), Model: model, Inputs: len(inputs), StartedAt: time.Now()}

	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		ev.Error = err
		notify(ctx, p.observer, ev)
		return nil, fmt.Errorf("OpenAI embeddings error: %w", err)
	}

	vectors := make([][]float64, len(inputs))
	for _, d := range resp.Data {
		if int(d.Index) < 0 || int(d.Index) >= len(vectors) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			err := fmt.Errorf("embedding missing for input %d", i)
			ev.Error = err
			notify(ctx, p.observer, ev)
			return nil, err
		}
	}

	usage := Usage{
		PromptTokens: int(resp.Usage.PromptTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	ev.Usage = usage
	notify(ctx, p.observer, ev)

	return &EmbeddingResponse{
		Vectors:  vectors,
		Usage:    usage,
		Model:    resp.Model,
		Duration: time.Since(ev.StartedAt),
	}, nil
}

// UploadTrainingFile uploads a JSONL file for fine-tuning.
func (p *OpenAIProvider) UploadTrainingFile(ctx context.Context, name string, r io.Reader) (string, error) {
	ev := LLMCallEvent{Kind: CallFineTune, Provider: p.Name(), StartedAt: time.Now()}
	f, err := p.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(r, name, "application/jsonl"),
		Purpose: openai.FilePurposeFineTune,
	})
	ev.Error = err
	notify(ctx, p.observer, ev)
	if err != nil {
		return "", fmt.Errorf("upload training file: %w", err)
	}
	return f.ID, nil
}

// CreateFineTuneJob submits a fine-tuning job.
func (p *OpenAIProvider) CreateFineTuneJob(ctx context.Context, req FineTuneRequest) (*FineTuneJob, error) {
	ev := LLMCallEvent{Kind: CallFineTune, Provider: p.Name(), Model: req.BaseModel, StartedAt: time.Now()}
	params := openai.FineTuningJobNewParams{
		Model:        openai.FineTuningJobNewParamsModel(req.BaseModel),
		TrainingFile: req.TrainingFileID,
	}
	if req.Suffix != "" {
		params.Suffix = openai.String(req.Suffix)
	}
	job, err := p.client.FineTuning.Jobs.New(ctx, params)
	ev.Error = err
	notify(ctx, p.observer, ev)
	if err != nil {
		return nil, fmt.Errorf("create fine-tuning job: %w", err)
	}
	return convertJob(job), nil
}

// GetFineTuneJob fetches the current state of a job.
func (p *OpenAIProvider) GetFineTuneJob(ctx context.Context, id string) (*FineTuneJob, error) {
	job, err := p.client.FineTuning.Jobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retrieve fine-tuning job %s: %w", id, err)
	}
	return convertJob(job), nil
}

func convertJob(job *openai.FineTuningJob) *FineTuneJob {
	return &FineTuneJob{
		ID:             job.ID,
		Status:         JobStatus(job.Status),
		BaseModel:      job.Model,
		FineTunedModel: job.FineTunedModel,
		TrainingFile:   job.TrainingFile,
		Error:          job.Error.Message,
	}
}

// ListModels returns every model visible to the API key.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ev := LLMCallEvent{Kind: CallModels, Provider: p.Name(), StartedAt: time.Now()}
	var models []ModelInfo
	iter := p.client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		m := iter.Current()
		models = append(models, ModelInfo{
			ID:      m.ID,
			OwnedBy: m.OwnedBy,
			Created: time.Unix(m.Created, 0).UTC(),
		})
	}
	ev.Error = iter.Err()
	notify(ctx, p.observer, ev)
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// RetrieveModel returns metadata for a single model.
func (p *OpenAIProvider) RetrieveModel(ctx context.Context, id string) (*ModelInfo, error) {
	m, err := p.client.Models.Get(ctx, id)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
		}
		return nil, fmt.Errorf("retrieve model %s: %w", id, err)
	}
	return &ModelInfo{
		ID:      m.ID,
		OwnedBy: m.OwnedBy,
		Created: time.Unix(m.Created, 0).UTC(),
	}, nil
}

// Ensure OpenAIProvider implements required interfaces
var (
	_ Completer    = (*OpenAIProvider)(nil)
	_ Embedder     = (*OpenAIProvider)(nil)
	_ FineTuner    = (*OpenAIProvider)(nil)
	_ ModelCatalog = (*OpenAIProvider)(nil)
)
