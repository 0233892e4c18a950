package finetune

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/airlinebench/pkg/dataset"
	"github.com/jmylchreest/airlinebench/pkg/llm"
)

func TestWriteTrainingData(t *testing.T) {
	examples := []dataset.Example{
		{Text: "@united <3", Labels: []string{"United Airlines"}},
		{Text: "@SouthwestAir & @JetBlue", Labels: []string{"Southwest Airlines", "JetBlue Airways"}},
	}
	var buf bytes.Buffer
	if err := WriteTrainingData(&buf, examples); err != nil {
		t.Fatalf("WriteTrainingData() error = %v", err)
	}

	if bytes.Contains(buf.Bytes(), []byte(`\u003c`)) {
		t.Error("HTML characters should not be escaped")
	}

	sc := bufio.NewScanner(&buf)
	var recs []Record
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %d: %v", len(recs)+1, err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	msgs := recs[1].Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != SystemPrompt {
		t.Errorf("unexpected system message: %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "Extract airlines from this tweet: @SouthwestAir & @JetBlue" {
		t.Errorf("unexpected user message: %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleAssistant || msgs[2].Content != "Southwest Airlines, JetBlue Airways" {
		t.Errorf("unexpected assistant message: %+v", msgs[2])
	}
}

func TestPrepareTrainingData(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "train.csv")
	if err := os.WriteFile(src, []byte("tweet,airlines\n@delta hi,['Delta Air Lines']\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "data", "fine_tuning.jsonl")

	n, err := PrepareTrainingData(src, dst)
	if err != nil {
		t.Fatalf("PrepareTrainingData() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) || bytes.Count(data, []byte("\n")) != 1 {
		t.Errorf("expected one JSON line, got %q", data)
	}

	if _, err := PrepareTrainingData(filepath.Join(dir, "missing.csv"), dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestIsFineTuned(t *testing.T) {
	tests := []struct {
		m    llm.ModelInfo
		want bool
	}{
		{llm.ModelInfo{ID: "ft:gpt-3.5-turbo:acme::abc"}, true},
		{llm.ModelInfo{ID: "custom", OwnedBy: "organization-owner"}, true},
		{llm.ModelInfo{ID: "ft:gpt-3.5-turbo:acme::abc:ckpt-step-100"}, false},
		{llm.ModelInfo{ID: "gpt-3.5-turbo", OwnedBy: "openai"}, false},
	}
	for _, tt := range tests {
		if got := IsFineTuned(tt.m); got != tt.want {
			t.Errorf("IsFineTuned(%+v) = %v, want %v", tt.m, got, tt.want)
		}
	}
}

type fakeCatalog struct {
	models []llm.ModelInfo
	err    error
}

func (f *fakeCatalog) ListModels(context.Context) ([]llm.ModelInfo, error) { return f.models, f.err }

func (f *fakeCatalog) RetrieveModel(_ context.Context, id string) (*llm.ModelInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range f.models {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, llm.ErrModelNotFound
}

func TestListFineTunedAndVerify(t *testing.T) {
	cat := &fakeCatalog{models: []llm.ModelInfo{
		{ID: "gpt-4o", OwnedBy: "system"},
		{ID: "ft:a"},
		{ID: "ft:a:ckpt-step-1"},
		{ID: "ft:b"},
	}}
	ids, err := ListFineTuned(context.Background(), cat)
	if err != nil {
		t.Fatalf("ListFineTuned() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "ft:a" || ids[1] != "ft:b" {
		t.Errorf("ListFineTuned() = %v", ids)
	}

	if ok, err := Verify(context.Background(), cat, "ft:b"); !ok || err != nil {
		t.Errorf("Verify(ft:b) = %v, %v", ok, err)
	}
	if ok, err := Verify(context.Background(), cat, "ft:zzz"); ok || err != nil {
		t.Errorf("Verify(ft:zzz) = %v, %v", ok, err)
	}

	boom := errors.New("boom")
	if _, err := Verify(context.Background(), &fakeCatalog{err: boom}, "x"); !errors.Is(err, boom) {
		t.Errorf("expected lookup error, got %v", err)
	}
}

// fakeTuner replays a fixed status sequence.
type fakeTuner struct {
	statuses []llm.JobStatus
	model    string
	jobErr   string

	uploaded []byte
	req      llm.FineTuneRequest
	polls    int
}

func (f *fakeTuner) UploadTrainingFile(_ context.Context, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	f.uploaded = b
	return "file-123", err
}

func (f *fakeTuner) CreateFineTuneJob(_ context.Context, req llm.FineTuneRequest) (*llm.FineTuneJob, error) {
	f.req = req
	return f.job(0), nil
}

func (f *fakeTuner) GetFineTuneJob(_ context.Context, _ string) (*llm.FineTuneJob, error) {
	f.polls++
	return f.job(f.polls), nil
}

func (f *fakeTuner) job(i int) *llm.FineTuneJob {
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	j := &llm.FineTuneJob{ID: "job-1", Status: f.statuses[i]}
	if j.Status == llm.JobSucceeded {
		j.FineTunedModel = f.model
	}
	if j.Status == llm.JobFailed {
		j.Error = f.jobErr
	}
	return j
}

func writeJSONL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fine_tuning.jsonl")
	if err := os.WriteFile(path, []byte(`{"messages":[]}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrainer_Success(t *testing.T) {
	ft := &fakeTuner{
		statuses: []llm.JobStatus{llm.JobValidating, llm.JobQueued, llm.JobRunning, llm.JobRunning, llm.JobSucceeded},
		model:    "ft:gpt-3.5-turbo:acme:airline-extractor:xyz",
	}
	var seen []llm.JobStatus
	tr := NewTrainer(ft, Options{
		PollInterval: time.Millisecond,
		OnStatus:     func(j *llm.FineTuneJob) { seen = append(seen, j.Status) },
	})

	model, err := tr.TrainFile(context.Background(), writeJSONL(t))
	if err != nil {
		t.Fatalf("TrainFile() error = %v", err)
	}
	if model != ft.model {
		t.Errorf("model = %q", model)
	}
	if ft.req.BaseModel != DefaultBaseModel || ft.req.Suffix != DefaultSuffix || ft.req.TrainingFileID != "file-123" {
		t.Errorf("unexpected job request: %+v", ft.req)
	}
	if string(ft.uploaded) != `{"messages":[]}`+"\n" {
		t.Errorf("uploaded %q", ft.uploaded)
	}
	want := []llm.JobStatus{llm.JobValidating, llm.JobQueued, llm.JobRunning, llm.JobSucceeded}
	if len(seen) != len(want) {
		t.Fatalf("status changes = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("status %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestTrainer_JobFailed(t *testing.T) {
	ft := &fakeTuner{statuses: []llm.JobStatus{llm.JobQueued, llm.JobFailed}, jobErr: "invalid file"}
	tr := NewTrainer(ft, Options{PollInterval: time.Millisecond})

	_, err := tr.TrainFile(context.Background(), writeJSONL(t))
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
}

func TestTrainer_Cancelled(t *testing.T) {
	ft := &fakeTuner{statuses: []llm.JobStatus{llm.JobCancelled}}
	tr := NewTrainer(ft, Options{PollInterval: time.Millisecond})
	if _, err := tr.TrainFile(context.Background(), writeJSONL(t)); !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed for cancelled job, got %v", err)
	}
}

func TestTrainer_Timeout(t *testing.T) {
	ft := &fakeTuner{statuses: []llm.JobStatus{llm.JobRunning}}
	tr := NewTrainer(ft, Options{PollInterval: time.Millisecond, MaxWait: 20 * time.Millisecond})

	_, err := tr.Wait(context.Background(), &llm.FineTuneJob{ID: "job-1", Status: llm.JobRunning})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if ft.polls == 0 {
		t.Error("expected at least one poll")
	}
}

func TestTrainer_ContextCancel(t *testing.T) {
	ft := &fakeTuner{statuses: []llm.JobStatus{llm.JobRunning}}
	tr := NewTrainer(ft, Options{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Wait(ctx, &llm.FineTuneJob{ID: "job-1", Status: llm.JobQueued})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewTrainer_Defaults(t *testing.T) {
	tr := NewTrainer(&fakeTuner{}, Options{})
	if tr.opts.PollInterval != DefaultPollInterval || tr.opts.MaxWait != DefaultMaxWait {
		t.Errorf("unexpected defaults: %+v", tr.opts)
	}
}
