package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/airlinebench/pkg/finetune"
	"github.com/jmylchreest/airlinebench/pkg/llm"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fine-tune a model on the labelled training data",
	Long: `Convert the training CSV to chat-format JSONL, upload it, start a
fine-tuning job and wait for it to finish.

Only the resulting model id is written to stdout so scripts can capture it:

  MODEL_ID=$(airlinebench train -q)
  airlinebench evaluate --strategy fine-tuned --model-id "$MODEL_ID"`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	flags := trainCmd.Flags()
	flags.String("training-data", "", "labelled CSV with tweet and airlines columns")
	flags.String("fine-tuning-file", "", "where to write the JSONL training file")
	flags.String("base-model", "", "model to fine-tune")
	flags.Duration("poll-interval", 0, "job status poll interval")
	flags.Duration("max-wait", 0, "give up waiting for the job after this long")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	modelID, err := trainModel(ctx, cmd, client)
	if err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), modelID)
	return nil
}

// trainModel prepares the training file and runs a fine-tuning job to
// completion, returning the new model id.
func trainModel(ctx context.Context, cmd *cobra.Command, client llm.Completer) (string, error) {
	tuner, ok := llm.AsFineTuner(client)
	if !ok {
		return "", fmt.Errorf("provider %s does not support fine-tuning", client.Name())
	}

	n, err := finetune.PrepareTrainingData(cfg.Paths.TrainingData, cfg.Paths.FineTuningFile)
	if err != nil {
		return "", err
	}
	logInfo(cmd, "Prepared %d training examples in %s", n, cfg.Paths.FineTuningFile)

	opts := cfg.FineTuneOptions()
	opts.OnStatus = func(job *llm.FineTuneJob) {
		logInfo(cmd, "Job %s: %s", job.ID, job.Status)
	}
	return finetune.NewTrainer(tuner, opts).TrainFile(ctx, cfg.Paths.FineTuningFile)
}
