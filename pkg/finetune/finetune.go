// Package finetune prepares training data for, submits and polls external
// fine-tuning jobs, and discovers the resulting models.
package finetune

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/airlinebench/internal/logger"
	"github.com/jmylchreest/airlinebench/pkg/dataset"
	"github.com/jmylchreest/airlinebench/pkg/llm"
)

// SystemPrompt is shared by the training records and fine-tuned inference.
const SystemPrompt = "You are a helpful assistant that extracts airline names from tweets. Only respond with the official airline names, separated by commas if there are multiple airlines."

// UserPrompt builds the user turn for text.
func UserPrompt(text string) string {
	return "Extract airlines from this tweet: " + text
}

// Record is one line of the training file.
type Record struct {
	Messages []llm.Message `json:"messages"`
}

// NewRecord builds the system/user/assistant triple for one example.
func NewRecord(ex dataset.Example) Record {
	return Record{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: UserPrompt(ex.Text)},
		{Role: llm.RoleAssistant, Content: ex.Expected()},
	}}
}

// WriteTrainingData writes one JSON record per example to w.
func WriteTrainingData(w io.Writer, examples []dataset.Example) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, ex := range examples {
		if err := enc.Encode(NewRecord(ex)); err != nil {
			return fmt.Errorf("encode example %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// PrepareTrainingData converts the labelled CSV at src into the JSONL file
// at dst, creating parent directories as needed. It returns the number of
// records written.
func PrepareTrainingData(src, dst string) (int, error) {
	examples, err := dataset.Load(src)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create training dir: %w", err)
	}
	f, err := os.Create(dst) //#nosec G304 -- path comes from configuration
	if err != nil {
		return 0, fmt.Errorf("create training file: %w", err)
	}
	if err := WriteTrainingData(f, examples); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	size := "unknown size"
	if fi, err := os.Stat(dst); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	logger.Info("training data prepared", "path", dst, "examples", len(examples), "size", size)
	return len(examples), nil
}

// IsFineTuned reports whether a model id looks like a usable fine-tuned model.
// Intermediate checkpoints are excluded.
func IsFineTuned(m llm.ModelInfo) bool {
	if strings.Contains(m.ID, "ckpt") {
		return false
	}
	return strings.HasPrefix(m.ID, "ft:") || m.OwnedBy == "organization-owner"
}

// ListFineTuned returns the ids of fine-tuned models in catalog order.
func ListFineTuned(ctx context.Context, catalog llm.ModelCatalog) ([]string, error) {
	models, err := catalog.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, m := range models {
		if IsFineTuned(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Verify reports whether id exists. Lookup failures other than not-found
// are returned as errors.
func Verify(ctx context.Context, catalog llm.ModelCatalog, id string) (bool, error) {
	if _, err := catalog.RetrieveModel(ctx, id); err != nil {
		if errors.Is(err, llm.ErrModelNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
