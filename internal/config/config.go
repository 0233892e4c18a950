// Package config loads airlinebench settings from defaults, an optional YAML
// file, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmylchreest/airlinebench/internal/output"
	"github.com/jmylchreest/airlinebench/pkg/finetune"
	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/pricing"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

// EnvPrefix is prepended to every environment override, e.g.
// AIRLINEBENCH_LLM_MODEL for llm.model.
const EnvPrefix = "AIRLINEBENCH"

// ConfigName is the base name of the config file searched in $HOME and ".".
const ConfigName = ".airlinebench"

// ErrMissingAPIKey is returned when no API key is configured for the provider.
var ErrMissingAPIKey = errors.New("API key not configured")

// Config holds all configuration for the benchmark.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Costs      CostsConfig      `mapstructure:"costs"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	FineTune   FineTuneConfig   `mapstructure:"finetune"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
}

// LLMConfig selects and tunes the external service.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" validate:"required,oneof=openai anthropic"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model             string        `mapstructure:"model"`
	Temperature       float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	Dataset        string `mapstructure:"dataset" validate:"required"`
	TrainingData   string `mapstructure:"training_data" validate:"required"`
	OutputDir      string `mapstructure:"output_dir" validate:"required"`
	LogDir         string `mapstructure:"log_dir"`
	FineTuningFile string `mapstructure:"fine_tuning_file" validate:"required"`
}

// CostsConfig holds per-1000-token rates by pricing category.
type CostsConfig struct {
	PromptBased pricing.Rate `mapstructure:"prompt_based"`
	Embedding   pricing.Rate `mapstructure:"embedding"`
	FineTuned   pricing.Rate `mapstructure:"fine_tuned"`
}

// Table converts the configured rates to a pricing table.
func (c CostsConfig) Table() pricing.Table {
	return pricing.Table{
		pricing.CategoryPromptBased: c.PromptBased,
		pricing.CategoryEmbedding:   c.Embedding,
		pricing.CategoryFineTuned:   c.FineTuned,
	}
}

// EmbeddingConfig tunes the embeddings strategy.
type EmbeddingConfig struct {
	// Threshold is the cosine similarity a candidate must exceed, in (0, 1].
	Threshold float64 `mapstructure:"threshold" validate:"gt=0,lte=1"`
}

// FineTuneConfig selects the fine-tuned model and drives training jobs.
type FineTuneConfig struct {
	ModelID      string        `mapstructure:"model_id"`
	BaseModel    string        `mapstructure:"base_model" validate:"required"`
	Suffix       string        `mapstructure:"suffix"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gte=1s"`
	MaxWait      time.Duration `mapstructure:"max_wait" validate:"gte=1s"`
}

// EvaluationConfig controls scoring and the result file format.
type EvaluationConfig struct {
	// Canonicalize cleans extracted names before scoring. Off keeps exact
	// match comparable across runs.
	Canonicalize bool   `mapstructure:"canonicalize"`
	Format       string `mapstructure:"format" validate:"oneof=csv json jsonl yaml"`
}

// AnalysisConfig bounds the failure analysis prompt.
type AnalysisConfig struct {
	MaxExamples int `mapstructure:"max_examples" validate:"gte=1"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	rates := pricing.DefaultTable()

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.embedding_model", llm.DefaultEmbeddingModel)
	v.SetDefault("llm.requests_per_second", 0.0)
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("paths.dataset", filepath.Join("data", "airline_test.csv"))
	v.SetDefault("paths.training_data", filepath.Join("data", "airline_train.csv"))
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.log_dir", "logs")
	v.SetDefault("paths.fine_tuning_file", filepath.Join("data", "fine_tuning.jsonl"))

	for key, cat := range map[string]pricing.Category{
		"prompt_based": pricing.CategoryPromptBased,
		"embedding":    pricing.CategoryEmbedding,
		"fine_tuned":   pricing.CategoryFineTuned,
	} {
		v.SetDefault("costs."+key+".input", rates[cat].Input)
		v.SetDefault("costs."+key+".output", rates[cat].Output)
	}

	v.SetDefault("embedding.threshold", strategy.DefaultThreshold)

	v.SetDefault("finetune.model_id", "")
	v.SetDefault("finetune.base_model", finetune.DefaultBaseModel)
	v.SetDefault("finetune.suffix", finetune.DefaultSuffix)
	v.SetDefault("finetune.poll_interval", finetune.DefaultPollInterval)
	v.SetDefault("finetune.max_wait", finetune.DefaultMaxWait)

	v.SetDefault("evaluation.canonicalize", false)
	v.SetDefault("evaluation.format", string(output.FormatCSV))

	v.SetDefault("analysis.max_examples", 10)
}

// New returns a viper instance with defaults and environment overrides
// registered. When configFile is empty, .airlinebench.yaml is searched in
// the home and working directories; a missing file is not an error.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the configuration held by v. An empty API key
// falls back to the provider's conventional variable (OPENAI_API_KEY,
// ANTHROPIC_API_KEY).
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Evaluation.Format = strings.ToLower(strings.TrimSpace(cfg.Evaluation.Format))

	if cfg.LLM.APIKey == "" {
		if key := llm.EnvKey(cfg.LLM.Provider); key != "" {
			cfg.LLM.APIKey = os.Getenv(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. It does not require an API key; see
// RequireAPIKey.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	errs := make([]error, 0, len(ve))
	for _, fe := range ve {
		errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fieldRule(fe), fe.Value()))
	}
	return errors.Join(errs...)
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// RequireAPIKey returns ErrMissingAPIKey when no key is set.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	if key := llm.EnvKey(c.LLM.Provider); key != "" {
		return fmt.Errorf("%w: set %s or %s_LLM_API_KEY", ErrMissingAPIKey, key, EnvPrefix)
	}
	return fmt.Errorf("%w for provider %s", ErrMissingAPIKey, c.LLM.Provider)
}

// ProviderConfig returns the service client settings.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	pc := llm.DefaultProviderConfig()
	pc.APIKey = c.LLM.APIKey
	pc.BaseURL = c.LLM.BaseURL
	pc.Model = c.LLM.Model
	pc.RequestsPerSecond = c.LLM.RequestsPerSecond
	if c.LLM.Timeout > 0 {
		pc.Timeout = c.LLM.Timeout
	}
	return pc
}

// OutputFormat returns the configured table format.
func (c *Config) OutputFormat() output.Format {
	return output.Format(c.Evaluation.Format)
}

// FineTuneOptions returns trainer settings.
func (c *Config) FineTuneOptions() finetune.Options {
	return finetune.Options{
		BaseModel:    c.FineTune.BaseModel,
		Suffix:       c.FineTune.Suffix,
		PollInterval: c.FineTune.PollInterval,
		MaxWait:      c.FineTune.MaxWait,
	}
}
