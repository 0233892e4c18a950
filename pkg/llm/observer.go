package llm

import (
	"context"
	"time"

	"github.com/jmylchreest/airlinebench/internal/logger"
)

// CallKind identifies which service operation an event describes.
type CallKind string

const (
	CallCompletion CallKind = "completion"
	CallEmbedding  CallKind = "embedding"
	CallFineTune   CallKind = "fine_tune"
	CallModels     CallKind = "models"
)

// LLMObserver receives notifications about service calls for observability.
//
// The observer is called after every call, whether successful or failed.
// Calls are sequential so implementations need no synchronisation of their own.
type LLMObserver interface {
	OnLLMCall(ctx context.Context, event LLMCallEvent)
}

// LLMCallEvent contains all information about one service call.
type LLMCallEvent struct {
	Kind     CallKind
	Provider string
	Model    string

	// Inputs is the number of texts (embedding) or messages (completion) sent.
	Inputs int

	Usage Usage

	// Error if the call failed (nil on success)
	Error error

	Duration  time.Duration
	StartedAt time.Time
}

// ObserverFunc is a convenience type for using a function as an LLMObserver.
type ObserverFunc func(ctx context.Context, event LLMCallEvent)

// OnLLMCall implements LLMObserver.
func (f ObserverFunc) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	f(ctx, event)
}

// MultiObserver combines multiple observers into one.
type MultiObserver struct {
	observers []LLMObserver
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
func NewMultiObserver(observers ...LLMObserver) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnLLMCall dispatches the event to all registered observers.
func (m *MultiObserver) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	for _, obs := range m.observers {
		obs.OnLLMCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs LLMObserver) {
	m.observers = append(m.observers, obs)
}

// LogObserver writes every call to the package logger at debug level, and
// failed calls at error level.
func LogObserver() LLMObserver {
	return ObserverFunc(func(ctx context.Context, ev LLMCallEvent) {
		if ev.Error != nil {
			logger.ErrorContext(ctx, "llm call failed",
				"kind", ev.Kind,
				"provider", ev.Provider,
				"model", ev.Model,
				"duration", ev.Duration,
				"error", ev.Error)
			return
		}
		logger.DebugContext(ctx, "llm call",
			"kind", ev.Kind,
			"provider", ev.Provider,
			"model", ev.Model,
			"inputs", ev.Inputs,
			"prompt_tokens", ev.Usage.PromptTokens,
			"completion_tokens", ev.Usage.CompletionTokens,
			"total_tokens", ev.Usage.TotalTokens,
			"duration", ev.Duration)
	})
}

func notify(ctx context.Context, obs LLMObserver, ev LLMCallEvent) {
	if obs == nil {
		return
	}
	ev.Duration = time.Since(ev.StartedAt)
	obs.OnLLMCall(ctx, ev)
}
