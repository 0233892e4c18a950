package finetune

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/pkg/llm"
)

var (
	// ErrJobFailed is returned when a job ends in any state but succeeded.
	ErrJobFailed = errors.New("fine-tuning job failed")

	// ErrTimeout is returned when a job is still running after MaxWait.
	ErrTimeout = errors.New("fine-tuning job did not finish in time")
)

// Defaults for Options.
const (
	DefaultBaseModel    = "gpt-3.5-turbo"
	DefaultSuffix       = "airline-extractor"
	DefaultPollInterval = 10 * time.Second
	DefaultMaxWait      = 2 * time.Hour
)

// Options configures a Trainer.
type Options struct {
	BaseModel    string
	Suffix       string
	PollInterval time.Duration
	MaxWait      time.Duration

	// OnStatus is called whenever the observed job status changes.
	OnStatus func(job *llm.FineTuneJob)
}

// Trainer drives one fine-tuning job from upload to terminal status.
type Trainer struct {
	client llm.FineTuner
	opts   Options
}

// NewTrainer creates a Trainer, filling unset options with defaults.
func NewTrainer(client llm.FineTuner, opts Options) *Trainer {
	if opts.BaseModel == "" {
		opts.BaseModel = DefaultBaseModel
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	return &Trainer{client: client, opts: opts}
}

// TrainFile uploads the JSONL file at path, submits a job and waits for it.
// It returns the fine-tuned model id.
func (t *Trainer) TrainFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path) //#nosec G304 -- path comes from configuration
	if err != nil {
		return "", fmt.Errorf("open training file: %w", err)
	}
	defer func() { _ = f.Close() }()

	fileID, err := t.client.UploadTrainingFile(ctx, filepath.Base(path), f)
	if err != nil {
		return "", err
	}
	logger.Info("training file uploaded", "file_id", fileID)

	job, err := t.client.CreateFineTuneJob(ctx, llm.FineTuneRequest{
		TrainingFileID: fileID,
		BaseModel:      t.opts.BaseModel,
		Suffix:         t.opts.Suffix,
	})
	if err != nil {
		return "", err
	}
	logger.Info("fine-tuning job created", "job_id", job.ID, "base_model", t.opts.BaseModel)

	return t.Wait(ctx, job)
}

// Wait polls job until it reaches a terminal status, MaxWait elapses or ctx
// is cancelled.
func (t *Trainer) Wait(ctx context.Context, job *llm.FineTuneJob) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.MaxWait)
	defer cancel()

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	var last llm.JobStatus
	for {
		if job.Status != last {
			last = job.Status
			logger.Info("fine-tuning job status", "job_id", job.ID, "status", job.Status)
			if t.opts.OnStatus != nil {
				t.opts.OnStatus(job)
			}
		}
		if job.Status.Terminal() {
			break
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: job %s still %s after %s", ErrTimeout, job.ID, job.Status, t.opts.MaxWait)
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		next, err := t.client.GetFineTuneJob(ctx, job.ID)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: job %s: %v", ErrTimeout, job.ID, err)
			}
			return "", err
		}
		job = next
	}

	if job.Status != llm.JobSucceeded {
		if job.Error != "" {
			return "", fmt.Errorf("%w: job %s %s: %s", ErrJobFailed, job.ID, job.Status, job.Error)
		}
		return "", fmt.Errorf("%w: job %s %s", ErrJobFailed, job.ID, job.Status)
	}
	logger.Info("fine-tuning job succeeded", "job_id", job.ID, "model", job.FineTunedModel)
	return job.FineTunedModel, nil
}
