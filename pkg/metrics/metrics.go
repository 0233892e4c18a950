// Package metrics accumulates per-item measurements for one extraction batch.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/airlinebench/pkg/llm"
)

// Item is one measured extraction.
type Item struct {
	Usage      llm.Usage
	Cost       float64
	Elapsed    time.Duration
	Similarity float64
	ExactMatch bool
}

// BatchMetrics is a single-writer accumulator. It is not safe for concurrent use.
type BatchMetrics struct {
	Method           string
	TotalTokens      int
	TotalTime        time.Duration
	TotalItems       int
	ExactMatches     int
	SimilarityScores []float64
	Costs            []float64
}

// New returns an empty accumulator for method.
func New(method string) *BatchMetrics {
	return &BatchMetrics{Method: method}
}

// Record adds one item.
func (m *BatchMetrics) Record(it Item) {
	m.TotalItems++
	m.TotalTokens += it.Usage.TotalTokens
	m.TotalTime += it.Elapsed
	if it.ExactMatch {
		m.ExactMatches++
	}
	m.SimilarityScores = append(m.SimilarityScores, it.Similarity)
	m.Costs = append(m.Costs, it.Cost)
}

// AddTime adds elapsed time not attributed to any item, such as strategy
// setup before the first call.
func (m *BatchMetrics) AddTime(d time.Duration) {
	if d > 0 {
		m.TotalTime += d
	}
}

// Accuracy is the exact-match percentage.
func (m *BatchMetrics) Accuracy() float64 {
	if m.TotalItems == 0 {
		return 0
	}
	return float64(m.ExactMatches) / float64(m.TotalItems) * 100
}

// AvgSimilarity is the mean similarity score.
func (m *BatchMetrics) AvgSimilarity() float64 {
	return mean(m.SimilarityScores)
}

// AvgTimePerItem is TotalTime spread over the recorded items.
func (m *BatchMetrics) AvgTimePerItem() time.Duration {
	if m.TotalItems == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.TotalItems)
}

// AvgTokensPerItem is the mean token count per item.
func (m *BatchMetrics) AvgTokensPerItem() float64 {
	if m.TotalItems == 0 {
		return 0
	}
	return float64(m.TotalTokens) / float64(m.TotalItems)
}

// TotalCost sums the per-item costs.
func (m *BatchMetrics) TotalCost() float64 {
	var sum float64
	for _, c := range m.Costs {
		sum += c
	}
	return sum
}

// AvgCostPerItem is the mean cost per item.
func (m *BatchMetrics) AvgCostPerItem() float64 {
	return mean(m.Costs)
}

// Snapshot is an immutable view of the derived values.
type Snapshot struct {
	Method           string        `json:"method" yaml:"method"`
	TotalItems       int           `json:"total_items" yaml:"total_items"`
	ExactMatches     int           `json:"exact_matches" yaml:"exact_matches"`
	Accuracy         float64       `json:"accuracy" yaml:"accuracy"`
	AvgSimilarity    float64       `json:"avg_similarity" yaml:"avg_similarity"`
	TotalTime        time.Duration `json:"total_time" yaml:"total_time"`
	AvgTimePerItem   time.Duration `json:"avg_time_per_item" yaml:"avg_time_per_item"`
	TotalTokens      int           `json:"total_tokens" yaml:"total_tokens"`
	AvgTokensPerItem float64       `json:"avg_tokens_per_item" yaml:"avg_tokens_per_item"`
	TotalCost        float64       `json:"total_cost" yaml:"total_cost"`
	AvgCostPerItem   float64       `json:"avg_cost_per_item" yaml:"avg_cost_per_item"`
}

// Snapshot captures the current derived values.
func (m *BatchMetrics) Snapshot() Snapshot {
	return Snapshot{
		Method:           m.Method,
		TotalItems:       m.TotalItems,
		ExactMatches:     m.ExactMatches,
		Accuracy:         m.Accuracy(),
		AvgSimilarity:    m.AvgSimilarity(),
		TotalTime:        m.TotalTime,
		AvgTimePerItem:   m.AvgTimePerItem(),
		TotalTokens:      m.TotalTokens,
		AvgTokensPerItem: m.AvgTokensPerItem(),
		TotalCost:        m.TotalCost(),
		AvgCostPerItem:   m.AvgCostPerItem(),
	}
}

const rule = "=================================================="

// Report renders the fixed-layout metrics block.
func (m *BatchMetrics) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n📊 %s Metrics\n", m.Method)
	b.WriteString(rule + "\n")
	b.WriteString("🎯 Accuracy Metrics:\n")
	fmt.Fprintf(&b, "   • Exact Matches:    %d/%d (%.1f%%)\n", m.ExactMatches, m.TotalItems, m.Accuracy())
	fmt.Fprintf(&b, "   • Avg Similarity:   %.1f%%\n", m.AvgSimilarity())
	b.WriteString("\n⏱️  Performance Metrics:\n")
	fmt.Fprintf(&b, "   • Total Time:       %.2fs\n", m.TotalTime.Seconds())
	fmt.Fprintf(&b, "   • Avg Time/Item:    %.1fms\n", float64(m.AvgTimePerItem())/float64(time.Millisecond))
	fmt.Fprintf(&b, "   • Total Tokens:     %s\n", humanize.Comma(int64(m.TotalTokens)))
	fmt.Fprintf(&b, "   • Avg Tokens/Item:  %.1f\n", m.AvgTokensPerItem())
	b.WriteString("\n💰 Cost Metrics:\n")
	fmt.Fprintf(&b, "   • Total Cost:       $%.4f\n", m.TotalCost())
	fmt.Fprintf(&b, "   • Avg Cost/Item:    $%.4f\n", m.AvgCostPerItem())
	b.WriteString(rule + "\n")
	return b.String()
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
