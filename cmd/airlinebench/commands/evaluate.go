package commands

import (
	"context"
	"fmt"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/pkg/dataset"
	"github.com/jmylchreest/airlinebench/pkg/eval"
	"github.com/jmylchreest/airlinebench/pkg/llm"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score one or all extraction strategies against a labelled dataset",
	Long: `Run extraction strategies over every tweet in the dataset, score each result
against its labels and print a metrics report per strategy.

Results are saved to the output directory as results_<strategy>_<timestamp>.
With --strategy compare-all, strategies run one after another; a failing
strategy is recorded in comparison_summary_<timestamp> and the rest still run.

Examples:
  airlinebench evaluate --strategy zero-shot
  airlinebench evaluate --strategy compare-all --model-id ft:gpt-3.5-turbo:acme::abc
  airlinebench evaluate --strategy fine-tuned --train-if-missing`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	flags := evaluateCmd.Flags()
	flags.StringP("strategy", "s", string(strategy.ZeroShot), "strategy name or compare-all")
	flags.String("dataset", "", "labelled CSV with tweet and airlines columns")
	flags.String("training-data", "", "labelled CSV used by the embeddings and fine-tuned strategies")
	flags.String("model-id", "", "fine-tuned model id (discovered when empty)")
	flags.Float64("threshold", 0, "embedding similarity threshold")
	flags.Bool("canonicalize", false, "clean extracted names before scoring")
	flags.Bool("skip-verify", false, "skip the connection check")
	flags.Bool("train-if-missing", false, "train a fine-tuned model first when none is configured")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sel, _ := cmd.Flags().GetString("strategy")
	names, err := strategy.ParseSelection(sel)
	if err != nil {
		return err
	}
	if err := cfg.Costs.Table().Validate(strategy.Categories(names)...); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	if skip, _ := cmd.Flags().GetBool("skip-verify"); !skip {
		if err := verifyConnection(ctx, client); err != nil {
			return err
		}
	}

	if train, _ := cmd.Flags().GetBool("train-if-missing"); train && cfg.FineTune.ModelID == "" && slices.Contains(names, strategy.FineTuned) {
		logger.Info("creating new fine-tuned model")
		modelID, err := trainModel(ctx, cmd, client)
		if err != nil {
			return fmt.Errorf("failed to create fine-tuned model: %w", err)
		}
		logger.Info("fine-tuned model created", "model", modelID)
		cfg.FineTune.ModelID = modelID
	}

	examples, err := dataset.Load(cfg.Paths.Dataset)
	if err != nil {
		return err
	}

	strategies, err := buildStrategies(newRegistry(client), names)
	if err != nil {
		return err
	}

	store := newStore()
	runner := eval.NewRunner(
		eval.WithStore(store),
		eval.WithCanonicalize(cfg.Evaluation.Canonicalize),
		eval.WithAnnouncer(func(name strategy.Name, model string) {
			logInfo(cmd, "Using model %s for %s", model, name.Display())
		}),
	)
	out := cmd.OutOrStdout()

	if len(names) == 1 {
		logInfo(cmd, "\nRunning %s extraction...", names[0])
		run, err := runner.Run(ctx, examples, strategies[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, run.Metrics.Report())
		logInfo(cmd, "Results saved to %s", run.Path)
		return nil
	}

	logInfo(cmd, "\n🔍 Evaluating Extraction Methods")
	cmp, err := eval.NewOrchestrator(runner, store).Compare(ctx, examples, strategies)
	if err != nil {
		return err
	}
	for _, run := range cmp.Runs {
		fmt.Fprintln(out, run.Metrics.Report())
	}
	for _, row := range cmp.Summary {
		if row.Status == eval.StatusFailed {
			fmt.Fprintf(out, "❌ %s failed: %s\n", strategy.Name(row.Method).Display(), row.Error)
		}
	}
	logInfo(cmd, "Comparison saved to %s and %s", cmp.ResultsPath, cmp.SummaryPath)

	if len(cmp.Runs) == 0 {
		return fmt.Errorf("all %d strategies failed", len(cmp.Summary))
	}
	return nil
}

// verifyConnection makes a minimal completion call.
func verifyConnection(ctx context.Context, client llm.Completer) error {
	_, err := client.Complete(ctx, llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "test"}},
		MaxTokens: 5,
	})
	if err != nil {
		return fmt.Errorf("%s connection failed: %w", client.Name(), err)
	}
	logger.Info("connection successful", "provider", client.Name(), "model", client.Model())
	return nil
}
