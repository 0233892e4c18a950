// Package commands implements the CLI commands for airlinebench.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/airlinebench/internal/config"
	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/internal/output"
	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

// noAPIKey marks commands that run without service credentials.
const noAPIKey = "no-api-key"

// LogFileName is created inside paths.log_dir.
const LogFileName = "extraction.log"

var (
	cfg     *config.Config
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "airlinebench",
	Short: "Benchmark LLM strategies for extracting airline names from tweets",
	Long: `airlinebench compares ways of extracting airline names from short texts
with an LLM service: zero-shot, one-shot and few-shot prompting, embedding
filtering and a fine-tuned model.

Each run scores extractions against a labelled dataset and reports accuracy,
similarity, token usage, latency and cost.

Examples:
  # Evaluate one strategy
  airlinebench evaluate --strategy few-shot

  # Compare every strategy on a custom dataset
  airlinebench evaluate --strategy compare-all --dataset data/airline_test.csv

  # Try a single tweet against all strategies
  airlinebench probe "@united lost my bag again"

  # Train a fine-tuned model and print its id
  airlinebench train`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.airlinebench.yaml)")
	flags.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only print errors to the console")
	flags.Bool("json-logs", false, "emit logs as JSON")

	flags.StringP("provider", "p", "", "LLM provider: openai, anthropic")
	flags.StringP("model", "m", "", "completion model (provider default when empty)")
	flags.String("output-dir", "", "directory for result files")
	flags.String("format", "", "result file format: csv, json, jsonl, yaml")
}

// flagKeys maps flag names to configuration keys. Only flags present on the
// running command are bound.
var flagKeys = map[string]string{
	"provider":         "llm.provider",
	"model":            "llm.model",
	"output-dir":       "paths.output_dir",
	"format":           "evaluation.format",
	"dataset":          "paths.dataset",
	"training-data":    "paths.training_data",
	"model-id":         "finetune.model_id",
	"canonicalize":     "evaluation.canonicalize",
	"threshold":        "embedding.threshold",
	"max-examples":     "analysis.max_examples",
	"base-model":       "finetune.base_model",
	"poll-interval":    "finetune.poll_interval",
	"max-wait":         "finetune.max_wait",
	"fine-tuning-file": "paths.fine_tuning_file",
}

func setup(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	bindFlags(cmd, v)

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	quiet, _ := cmd.Flags().GetBool("quiet")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	opts := logger.Options{Debug: debug, Quiet: quiet, JSON: jsonLogs, Output: cmd.ErrOrStderr()}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		path := filepath.Join(cfg.Paths.LogDir, LogFileName)
		logFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //#nosec G304 -- path comes from configuration
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		opts.File = logFile
	}
	logger.Init(opts)
	logger.Debug("configuration loaded", "config", v.ConfigFileUsed(), "provider", cfg.LLM.Provider)

	if cmd.Annotations[noAPIKey] == "" {
		return cfg.RequireAPIKey()
	}
	return nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if logFile != nil {
			_ = logFile.Close()
		}
	}()
	return rootCmd.Execute()
}

// newClient creates the completion client for the configured provider.
func newClient() (llm.Completer, error) {
	pc := cfg.ProviderConfig()
	pc.Observer = llm.LogObserver()
	return llm.NewProvider(cfg.LLM.Provider, pc)
}

func newStore() *output.Store {
	return output.NewStore(cfg.Paths.OutputDir, cfg.OutputFormat())
}

// newRegistry wires strategies to client. Embedding, fine-tuning and model
// listing are only available when the provider supports them.
func newRegistry(client llm.Completer) *strategy.Registry {
	deps := strategy.Deps{
		Completer:          client,
		Rates:              cfg.Costs.Table(),
		Temperature:        cfg.LLM.Temperature,
		TrainPath:          cfg.Paths.TrainingData,
		EmbeddingModel:     cfg.LLM.EmbeddingModel,
		EmbeddingThreshold: cfg.Embedding.Threshold,
		ModelID:            cfg.FineTune.ModelID,
	}
	if e, ok := llm.AsEmbedder(client); ok {
		deps.Embedder = e
	}
	if mc, ok := llm.AsModelCatalog(client); ok {
		deps.Models = mc
	}
	return strategy.NewRegistry(deps)
}

// buildStrategies constructs names. A single strategy must build; with more
// than one, strategies the provider cannot serve are kept as Unavailable so
// they are reported as failed or skipped instead of vanishing.
func buildStrategies(reg *strategy.Registry, names []strategy.Name) ([]strategy.Strategy, error) {
	if len(names) == 1 {
		s, err := reg.Build(names[0])
		if err != nil {
			return nil, err
		}
		return []strategy.Strategy{s}, nil
	}
	out := reg.BuildEach(names)
	for _, s := range out {
		if u, ok := s.(*strategy.Unavailable); ok {
			logger.Warn("strategy unavailable", "strategy", string(u.Name()), "provider", cfg.LLM.Provider, "error", u.Err())
		}
	}
	return out, nil
}

// logInfo prints a progress message to stderr unless quiet.
func logInfo(cmd *cobra.Command, format string, args ...any) {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
