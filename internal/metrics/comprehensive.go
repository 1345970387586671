package metrics

import (
	"sort"
	"strings"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/result"
	"github.com/signalnine/pantheon/internal/stats"
)

// SummaryStats counts coverage across tasks, topics, and formats.
type SummaryStats struct {
	TotalTests        int            `json:"total_tests"`
	TasksTested       []string       `json:"tasks_tested"`
	TopicsTested      []string       `json:"topics_tested"`
	FormatsTested     []string       `json:"formats_tested"`
	TestCountByTask   map[string]int `json:"test_count_by_task"`
	TestCountByTopic  map[string]int `json:"test_count_by_topic"`
	TestCountByFormat map[string]int `json:"test_count_by_format"`
}

// ComprehensiveMetrics breaks one model's aggregation down by task,
// topic, format, and their pairwise combinations.
type ComprehensiveMetrics struct {
	Overall          *ModelMetrics                       `json:"overall"`
	ByTask           map[string]*ModelMetrics            `json:"by_task"`
	ByTopic          map[string]*ModelMetrics            `json:"by_topic"`
	ByFormat         map[string]*ModelMetrics            `json:"by_format"`
	ByTaskAndTopic   map[string]map[string]*ModelMetrics `json:"by_task_and_topic"`
	ByTaskAndFormat  map[string]map[string]*ModelMetrics `json:"by_task_and_format"`
	ByTopicAndFormat map[string]map[string]*ModelMetrics `json:"by_topic_and_format"`
	SummaryStats     SummaryStats                        `json:"summary_stats"`
}

func taskOf(r *result.BenchmarkResult) string   { return orUnknown(r.Task) }
func topicOf(r *result.BenchmarkResult) string  { return orUnknown(r.TestCaseTopic) }
func formatOf(r *result.BenchmarkResult) string { return orUnknown(r.TestCaseFormat) }

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// AggregateByDimension groups valid records by a key and aggregates
// each group. Empty groups are omitted.
func AggregateByDimension(results []result.BenchmarkResult, key func(*result.BenchmarkResult) string, cfg *config.Config) map[string]*ModelMetrics {
	groups := make(map[string][]result.BenchmarkResult)
	for i := range results {
		r := &results[i]
		if r.Failed() {
			continue
		}
		groups[key(r)] = append(groups[key(r)], *r)
	}
	out := make(map[string]*ModelMetrics, len(groups))
	for value, group := range groups {
		if m := Aggregate(group, cfg); m != nil {
			out[value] = m
		}
	}
	return out
}

// Comprehensive computes the full breakdown for a single model's
// records. Returns nil when no record survived error filtering.
func Comprehensive(all []result.BenchmarkResult, cfg *config.Config) *ComprehensiveMetrics {
	valid := make([]result.BenchmarkResult, 0, len(all))
	for i := range all {
		if !all[i].Failed() {
			valid = append(valid, all[i])
		}
	}
	if len(valid) == 0 {
		return nil
	}

	byTaskAndTopic := make(map[string]map[string]*ModelMetrics)
	byTaskAndFormat := make(map[string]map[string]*ModelMetrics)
	for _, task := range config.KnownTasks() {
		var taskResults []result.BenchmarkResult
		for i := range valid {
			if valid[i].Task == task {
				taskResults = append(taskResults, valid[i])
			}
		}
		if len(taskResults) == 0 {
			continue
		}
		byTaskAndTopic[task] = AggregateByDimension(taskResults, topicOf, cfg)
		byTaskAndFormat[task] = AggregateByDimension(taskResults, formatOf, cfg)
	}

	byTopicAndFormat := make(map[string]map[string]*ModelMetrics)
	for _, topic := range distinct(valid, topicOf) {
		var topicResults []result.BenchmarkResult
		for i := range valid {
			if topicOf(&valid[i]) == topic {
				topicResults = append(topicResults, valid[i])
			}
		}
		byTopicAndFormat[topic] = AggregateByDimension(topicResults, formatOf, cfg)
	}

	return &ComprehensiveMetrics{
		Overall:          Aggregate(valid, cfg),
		ByTask:           AggregateByDimension(valid, taskOf, cfg),
		ByTopic:          AggregateByDimension(valid, topicOf, cfg),
		ByFormat:         AggregateByDimension(valid, formatOf, cfg),
		ByTaskAndTopic:   byTaskAndTopic,
		ByTaskAndFormat:  byTaskAndFormat,
		ByTopicAndFormat: byTopicAndFormat,
		SummaryStats:     summaryStats(valid),
	}
}

func summaryStats(valid []result.BenchmarkResult) SummaryStats {
	byTask := make(map[string]int)
	byTopic := make(map[string]int)
	byFormat := make(map[string]int)
	for _, task := range config.KnownTasks() {
		byTask[task] = 0
	}
	for i := range valid {
		r := &valid[i]
		byTask[taskOf(r)]++
		byTopic[topicOf(r)]++
		byFormat[formatOf(r)]++
	}
	return SummaryStats{
		TotalTests:        len(valid),
		TasksTested:       distinct(valid, taskOf),
		TopicsTested:      distinct(valid, topicOf),
		FormatsTested:     distinct(valid, formatOf),
		TestCountByTask:   byTask,
		TestCountByTopic:  byTopic,
		TestCountByFormat: byFormat,
	}
}

func distinct(results []result.BenchmarkResult, key func(*result.BenchmarkResult) string) []string {
	seen := make(map[string]bool)
	for i := range results {
		seen[key(&results[i])] = true
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// JudgeConsensus averages the per-record judge agreement metrics
// across a corpus, keyed as <dimension>_{mean,median}_{variance,agreement}.
func JudgeConsensus(results []result.BenchmarkResult) map[string]float64 {
	variances := make(map[string][]float64)
	agreements := make(map[string][]float64)

	for i := range results {
		r := &results[i]
		if r.JudgeEvaluation == nil {
			continue
		}
		for key, value := range r.JudgeEvaluation.ConsensusMetrics {
			switch {
			case strings.HasSuffix(key, "_variance"):
				base := strings.TrimSuffix(key, "_variance")
				variances[base] = append(variances[base], value)
			case strings.HasSuffix(key, "_agreement"):
				base := strings.TrimSuffix(key, "_agreement")
				agreements[base] = append(agreements[base], value)
			}
		}
	}

	out := make(map[string]float64)
	for base, values := range variances {
		out[base+"_mean_variance"] = stats.Mean(values)
		out[base+"_median_variance"] = stats.Median(values)
	}
	for base, values := range agreements {
		out[base+"_mean_agreement"] = stats.Mean(values)
		out[base+"_median_agreement"] = stats.Median(values)
	}
	return out
}
