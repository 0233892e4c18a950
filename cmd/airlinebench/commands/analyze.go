package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/airlinebench/pkg/eval"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ask the model to explain a strategy's extraction failures",
	Long: `Sample failed extractions from a results table and ask the completion
service for error patterns and prompt improvements. The answer is printed
and saved as analysis_<strategy>_<timestamp>.txt.

Without --results the newest results_<strategy> file in the output directory
is used. A comparison_results file can be given with --results; its rows are
filtered by the method column.

Examples:
  airlinebench analyze --strategy few-shot
  airlinebench analyze --strategy zero-shot --results output/comparison_results_2024-01-02_03-04-05.csv`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	flags := analyzeCmd.Flags()
	flags.StringP("strategy", "s", strategy.CompareAll, "strategy name or compare-all")
	flags.String("results", "", "results or comparison table to analyze")
	flags.Int("max-examples", 0, "maximum failures sent for analysis")
}

var analysisRule = strings.Repeat("=", 60)

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sel, _ := cmd.Flags().GetString("strategy")
	names, err := strategy.ParseSelection(sel)
	if err != nil {
		return err
	}
	resultsPath, _ := cmd.Flags().GetString("results")

	client, err := newClient()
	if err != nil {
		return err
	}
	store := newStore()
	analyzer := eval.NewAnalyzer(client, store, cfg.Analysis.MaxExamples)
	out := cmd.OutOrStdout()

	for _, name := range names {
		path := resultsPath
		if path == "" {
			path, err = store.Latest("results_" + string(name))
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(out, "No data found for %s\n", name)
				continue
			}
			if err != nil {
				return err
			}
		}

		logInfo(cmd, "\n🔍 Analyzing failures for %s...", name)
		an, err := analyzer.AnalyzeFile(ctx, string(name), path)
		if errors.Is(err, eval.ErrNoFailures) {
			fmt.Fprintf(out, "No failures to analyze for %s\n", name)
			continue
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "\n📊 Analysis Results:")
		fmt.Fprintln(out, analysisRule)
		fmt.Fprintln(out, an.Text)
		fmt.Fprintln(out, analysisRule)
		logInfo(cmd, "Analysis of %d/%d failures saved to %s", len(an.Sampled), an.Failures, an.Path)
	}
	return nil
}
