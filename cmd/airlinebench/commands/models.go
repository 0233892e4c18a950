package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/airlinebench/pkg/finetune"
	"github.com/jmylchreest/airlinebench/pkg/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List fine-tuned models available to the account",
	RunE:  runModels,
}

var modelsVerifyCmd = &cobra.Command{
	Use:   "verify <model-id>",
	Short: "Check that a model exists",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsVerify,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsVerifyCmd)

	modelsCmd.Flags().Bool("all", false, "list every model, not only fine-tuned ones")
}

func newCatalog() (llm.ModelCatalog, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	mc, ok := llm.AsModelCatalog(client)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support model listing", client.Name())
	}
	return mc, nil
}

func runModels(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	catalog, err := newCatalog()
	if err != nil {
		return err
	}
	models, err := catalog.ListModels(ctx)
	if err != nil {
		return err
	}

	all, _ := cmd.Flags().GetBool("all")
	shown := 0
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Model", "Owner", "Created")
	for _, m := range models {
		if !all && !finetune.IsFineTuned(m) {
			continue
		}
		shown++
		if err := table.Append(m.ID, m.OwnedBy, humanize.Time(m.Created)); err != nil {
			return err
		}
	}
	if shown > 0 {
		if err := table.Render(); err != nil {
			return err
		}
	} else {
		logInfo(cmd, "No fine-tuned models found. Run 'airlinebench train' to create one.")
	}
	return nil
}

func runModelsVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	catalog, err := newCatalog()
	if err != nil {
		return err
	}
	id := args[0]
	ok, err := finetune.Verify(ctx, catalog, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model %s: %w", id, llm.ErrModelNotFound)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Model %s is available\n", id)
	return nil
}
