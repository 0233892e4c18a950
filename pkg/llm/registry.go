package llm

import (
	"fmt"
	"os"
	"sort"
)

// ProviderFactory creates completers from config.
type ProviderFactory func(cfg ProviderConfig) (Completer, error)

// DefaultModels maps provider names to their default completion models.
var DefaultModels = map[string]string{
	"openai":    "gpt-3.5-turbo",
	"anthropic": "claude-sonnet-4-20250514",
}

var registry = map[string]ProviderFactory{}

func init() {
	RegisterProvider("openai", func(cfg ProviderConfig) (Completer, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Completer, error) {
		return NewAnthropicProvider(cfg)
	})
}

// NewProvider creates a completer by name.
func NewProvider(name string, cfg ProviderConfig) (Completer, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %v)", name, AvailableProviders())
	}
	if cfg.Model == "" {
		cfg.Model = GetDefaultModel(name)
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registry[name] = factory
}

// AvailableProviders returns the sorted list of registered providers.
func AvailableProviders() []string {
	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(provider string) string {
	if model, ok := DefaultModels[provider]; ok {
		return model
	}
	return ""
}

// IsRegistered returns true if a provider is registered.
func IsRegistered(name string) bool {
	_, ok := registry[name]
	return ok
}

// providerEnvKeys maps provider names to their API key environment variables.
var providerEnvKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// EnvKey returns the environment variable holding the provider's API key.
func EnvKey(provider string) string {
	return providerEnvKeys[provider]
}

// HasAPIKey checks if an API key environment variable is set for the given provider.
func HasAPIKey(provider string) bool {
	if envKey, ok := providerEnvKeys[provider]; ok {
		return os.Getenv(envKey) != ""
	}
	return false
}
