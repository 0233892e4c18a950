package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// AnthropicProvider implements Completer only. Anthropic offers neither
// embeddings nor fine-tuning, so it can back the prompt-based strategies but
// not the embedding or fine-tuned ones.
type AnthropicProvider struct {
	client   anthropic.Client
	model    string
	cfg      ProviderConfig
	limiter  *rate.Limiter
	observer LLMObserver
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

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

	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	p := &AnthropicProvider{
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

// Complete sends a completion request to Anthropic.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	ev := LLMCallEvent{Kind: CallCompletion, Provider: p.Name(), Model: model, Inputs: len(req.Messages), StartedAt: time.Now()}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	var systemPrompt string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Content
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	// Anthropic requires a max_tokens value; airline names are short.
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 256
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		ev.Error = err
		notify(ctx, p.observer, ev)
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(b.Text)
		}
	}
	if content.Len() == 0 {
		ev.Error = ErrEmptyResponse
		notify(ctx, p.observer, ev)
		return nil, ErrEmptyResponse
	}

	usage := Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	ev.Usage = usage
	ev.Model = string(resp.Model)
	notify(ctx, p.observer, ev)

	return &Response{
		Content:      strings.TrimSpace(content.String()),
		FinishReason: string(resp.StopReason),
		Usage:        usage,
		Model:        string(resp.Model),
		Duration:     time.Since(ev.StartedAt),
	}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the configured model name.
func (p *AnthropicProvider) Model() string {
	return p.model
}

var _ Completer = (*AnthropicProvider)(nil)
