package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/airlinebench/pkg/eval"
	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

var probeCmd = &cobra.Command{
	Use:   "probe <text>",
	Short: "Run a single tweet through one or every strategy",
	Long: `Extract airlines from one text and show what each strategy returned and
what it cost. Nothing is scored or saved.

With --strategy compare-all (the default) strategies that are not set up,
such as fine-tuned without a model, are reported as skipped.

Examples:
  airlinebench probe "@SouthwestAir thanks for the upgrade"
  airlinebench probe --strategy few-shot "@united @AmericanAir both delayed"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	flags := probeCmd.Flags()
	flags.StringP("strategy", "s", strategy.CompareAll, "strategy name or compare-all")
	flags.String("training-data", "", "labelled CSV used by the embeddings strategy")
	flags.String("model-id", "", "fine-tuned model id (discovered when empty)")
	flags.Float64("threshold", 0, "embedding similarity threshold")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	text := strings.Join(args, " ")
	sel, _ := cmd.Flags().GetString("strategy")
	names, err := strategy.ParseSelection(sel)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	strategies, err := buildStrategies(newRegistry(client), names)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rows := eval.Probe(ctx, text, strategies)
	if len(names) > 1 {
		logInfo(cmd, "\n🔍 Testing all methods...")
		return eval.RenderProbe(out, text, rows)
	}

	row := rows[0]
	if row.Err != nil {
		return row.Err
	}
	fmt.Fprintln(out, "\n📊 Results:")
	fmt.Fprintf(out, "Extracted Airline(s): %s\n", row.Extracted)
	fmt.Fprintf(out, "Tokens Used: %d\n", row.Tokens)
	fmt.Fprintf(out, "Cost: $%.4f\n", row.Cost)
	return nil
}
