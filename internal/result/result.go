// Package result defines the benchmark record and the on-disk corpus
// it accumulates in. One record captures a single model+task+test case
// run: generation output, reliability verdict, judge consensus, and
// spend.
package result

import (
	"github.com/signalnine/pantheon/internal/judge"
	"github.com/signalnine/pantheon/internal/llm"
)

// OutputTextLimit caps how much raw output is kept per record. Full
// outputs live in the generation cache; the corpus only needs enough
// for inspection.
const OutputTextLimit = 1000

// BenchmarkResult is one evaluated run.
type BenchmarkResult struct {
	ModelID             string           `json:"model_id"`
	Task                string           `json:"task"`
	TestCaseID          string           `json:"test_case_id"`
	TestCaseTopic       string           `json:"test_case_topic,omitempty"`
	TestCaseFormat      string           `json:"test_case_format,omitempty"`
	OutputText          string           `json:"output_text,omitempty"`
	ReliabilityScore    float64          `json:"reliability_score"`
	ReliabilityIssues   []string         `json:"reliability_issues,omitempty"`
	ContentQualityScore float64          `json:"content_quality_score"`
	JudgeEvaluation     *judge.Consensus `json:"judge_evaluation,omitempty"`
	Cost                float64          `json:"cost"`
	GenerationCost      float64          `json:"generation_cost"`
	JudgeCost           float64          `json:"judge_cost"`
	LatencyMS           float64          `json:"latency_ms"`
	Usage               *llm.Usage       `json:"usage,omitempty"`
	PricingTier         string           `json:"pricing_tier,omitempty"`
	Error               string           `json:"error,omitempty"`
}

// Key identifies a record for merging. Re-running the same
// model+task+test case replaces the earlier record.
func (r *BenchmarkResult) Key() string {
	return r.ModelID + ":" + r.Task + ":" + r.TestCaseID
}

// Failed reports whether the run produced no scorable output.
func (r *BenchmarkResult) Failed() bool {
	return r.Error != ""
}

// Merge folds new records into existing ones, last write wins per key.
// Existing record order is preserved; records with new keys append in
// their given order.
func Merge(existing, updates []BenchmarkResult) []BenchmarkResult {
	index := make(map[string]int, len(existing))
	merged := make([]BenchmarkResult, len(existing))
	copy(merged, existing)
	for i := range merged {
		index[merged[i].Key()] = i
	}
	for _, r := range updates {
		if i, ok := index[r.Key()]; ok {
			merged[i] = r
		} else {
			index[r.Key()] = len(merged)
			merged = append(merged, r)
		}
	}
	return merged
}

// FilterModel returns the records not belonging to modelID.
func FilterModel(results []BenchmarkResult, modelID string) []BenchmarkResult {
	kept := make([]BenchmarkResult, 0, len(results))
	for _, r := range results {
		if r.ModelID != modelID {
			kept = append(kept, r)
		}
	}
	return kept
}
