// Package llm provides a unified interface over the external LLM service:
// chat completion, embeddings, fine-tuning jobs and model discovery.
package llm

import (
	"context"
	"errors"
	"io"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request represents a completion request to the LLM.
type Request struct {
	Messages    []Message
	Model       string // Overrides the provider's configured model when set
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting returned by the service for one call.
// TotalTokens is taken as reported; it is not recomputed.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Response represents the result of a completion call.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string // Actual model used
	Duration     time.Duration
}

// EmbeddingResponse holds one vector per input, in input order.
type EmbeddingResponse struct {
	Vectors  [][]float64
	Usage    Usage
	Model    string
	Duration time.Duration
}

// JobStatus is the lifecycle state of a fine-tuning job.
type JobStatus string

const (
	JobValidating JobStatus = "validating_files"
	JobQueued     JobStatus = "queued"
	JobRunning    JobStatus = "running"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	}
	return false
}

// FineTuneJob is a snapshot of a fine-tuning job.
type FineTuneJob struct {
	ID             string
	Status         JobStatus
	BaseModel      string
	FineTunedModel string // Set once the job succeeds
	TrainingFile   string
	Error          string
}

// FineTuneRequest describes a job submission.
type FineTuneRequest struct {
	TrainingFileID string
	BaseModel      string
	Suffix         string
}

// ModelInfo contains metadata about a model available to the account.
type ModelInfo struct {
	ID      string    `json:"id"`
	OwnedBy string    `json:"owned_by"`
	Created time.Time `json:"created"`
}

// Completer is the core interface that all completion backends implement.
type Completer interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string, model string) (*EmbeddingResponse, error)
}

// FineTuner submits and inspects fine-tuning jobs.
type FineTuner interface {
	// UploadTrainingFile uploads a JSONL training file and returns its file ID.
	UploadTrainingFile(ctx context.Context, name string, r io.Reader) (string, error)
	CreateFineTuneJob(ctx context.Context, req FineTuneRequest) (*FineTuneJob, error)
	GetFineTuneJob(ctx context.Context, id string) (*FineTuneJob, error)
}

// ModelCatalog lists and verifies models.
type ModelCatalog interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	// RetrieveModel returns ErrModelNotFound if the model does not exist.
	RetrieveModel(ctx context.Context, id string) (*ModelInfo, error)
}

// ErrModelNotFound is returned when a requested model does not exist.
var ErrModelNotFound = errors.New("model not found")

// ErrEmptyResponse is returned when the service answers without any choice.
var ErrEmptyResponse = errors.New("no choices in response")

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls. Zero disables throttling.
	RequestsPerSecond float64
	// Observer is notified after every call.
	Observer LLMObserver
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout: 120 * time.Second,
	}
}

// AsEmbedder returns the completer as an Embedder if it implements the interface.
func AsEmbedder(c Completer) (Embedder, bool) {
	e, ok := c.(Embedder)
	return e, ok
}

// AsFineTuner returns the completer as a FineTuner if it implements the interface.
func AsFineTuner(c Completer) (FineTuner, bool) {
	ft, ok := c.(FineTuner)
	return ft, ok
}

// AsModelCatalog returns the completer as a ModelCatalog if it implements the interface.
func AsModelCatalog(c Completer) (ModelCatalog, bool) {
	mc, ok := c.(ModelCatalog)
	return mc, ok
}
