package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmylchreest/airlinebench/pkg/strategy"
)

// ProbeRow is the outcome of one strategy on a single text.
type ProbeRow struct {
	Method    strategy.Name
	Extracted string
	Tokens    int
	Cost      float64
	Elapsed   time.Duration

	// Err is set for skipped and failed strategies; Extracted then holds
	// the message shown to the operator.
	Err error
}

// Probe runs text through every strategy. Setup problems become "Skipping"
// rows and other failures "Error" rows; no failure stops the probe.
func Probe(ctx context.Context, text string, strategies []strategy.Strategy) []ProbeRow {
	rows := make([]ProbeRow, 0, len(strategies))
	for _, s := range strategies {
		row := ProbeRow{Method: s.Name()}
		batch, err := s.Extract(ctx, []string{text})
		switch {
		case err != nil:
			row.Err = err
			row.Extracted = probeMessage(err)
		case len(batch.Results) != 1 || len(batch.Usage) != 1:
			row.Err = fmt.Errorf("%w: %d results for 1 input", ErrContractViolation, len(batch.Results))
			row.Extracted = probeMessage(row.Err)
		default:
			u := batch.Usage[0]
			row.Extracted = batch.Results[0]
			row.Tokens = u.Usage.TotalTokens
			row.Cost = u.Cost
			row.Elapsed = u.Elapsed
		}
		rows = append(rows, row)
	}
	return rows
}

func probeMessage(err error) string {
	switch {
	case errors.Is(err, strategy.ErrNoModel):
		return "Skipping (no model ID)"
	case errors.Is(err, strategy.ErrNoTrainingData):
		return "Skipping (training data not found)"
	case errors.Is(err, strategy.ErrNoEmbedder):
		return "Skipping (no embeddings API)"
	case errors.Is(err, strategy.ErrConfigMissing):
		return "Skipping (configuration missing)"
	}
	return "Error: " + err.Error()
}

const probeRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// RenderProbe writes the probe table.
func RenderProbe(w io.Writer, text string, rows []ProbeRow) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nTweet: %s\n\n", text)
	b.WriteString(probeRule + "\n")
	fmt.Fprintf(&b, "%-15s %-30s %8s %10s %10s\n", "Method", "Extracted", "Tokens", "Cost ($)", "Time (s)")
	b.WriteString(probeRule + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-15s %-30s %8d %10.4f %10.2f\n",
			r.Method, truncate(r.Extracted, 30), r.Tokens, r.Cost, r.Elapsed.Seconds())
	}
	b.WriteString(probeRule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// truncate shortens s to n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
