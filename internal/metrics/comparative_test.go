package metrics_test

import (
	"testing"

	"github.com/signalnine/pantheon/internal/metrics"
	"github.com/signalnine/pantheon/internal/result"
)

func modelMetrics(reliability, quality, overall, combined, costPerQuality float64) *metrics.ModelMetrics {
	return &metrics.ModelMetrics{
		Reliability:         metrics.Distribution{Mean: reliability, CILower: reliability - 2, CIUpper: reliability + 2},
		ContentQuality:      metrics.Distribution{Mean: quality, CILower: quality - 2, CIUpper: quality + 2},
		OverallScore:        overall,
		CombinedScore:       combined,
		CostPerQualityPoint: costPerQuality,
	}
}

func TestComparativeEmpty(t *testing.T) {
	if c := metrics.Comparative(nil, nil, nil); c != nil {
		t.Errorf("empty metrics: got %+v", c)
	}
}

func TestComparativeRankings(t *testing.T) {
	all := map[string]*metrics.ModelMetrics{
		"model_a": modelMetrics(90, 85, 88, 87, 0.001),
		"model_b": modelMetrics(80, 90, 85, 86, 0.002),
	}

	c := metrics.Comparative(all, nil, nil)
	if c.ModelCount != 2 {
		t.Fatalf("model count: %d", c.ModelCount)
	}
	if c.Rankings["by_reliability"][0] != "model_a" {
		t.Errorf("by_reliability: %v", c.Rankings["by_reliability"])
	}
	if c.Rankings["by_content_quality"][0] != "model_b" {
		t.Errorf("by_content_quality: %v", c.Rankings["by_content_quality"])
	}
	if c.Rankings["by_overall_score"][0] != "model_a" {
		t.Errorf("by_overall_score: %v", c.Rankings["by_overall_score"])
	}
	if c.Rankings["by_cost_effectiveness"][0] != "model_a" {
		t.Errorf("by_cost_effectiveness: %v", c.Rankings["by_cost_effectiveness"])
	}
}

func TestComparativeValueScores(t *testing.T) {
	withCost := modelMetrics(90, 85, 88, 80, 0.001)
	withCost.Cost.Total = 0.5
	free := modelMetrics(80, 80, 80, 80, 0)

	c := metrics.Comparative(map[string]*metrics.ModelMetrics{
		"paid": withCost,
		"free": free,
	}, nil, nil)

	if float64(c.ValueScores["paid"]) != 160 {
		t.Errorf("paid value score: got %v, want 160", c.ValueScores["paid"])
	}
	// Zero cost with positive score ranks first as infinite value.
	if c.Rankings["by_value"][0] != "free" {
		t.Errorf("by_value: %v", c.Rankings["by_value"])
	}
}

func TestComparativeExcludesPartialModelsFromOverall(t *testing.T) {
	all := map[string]*metrics.ModelMetrics{
		"model_full":    modelMetrics(90, 88, 89, 88.6, 0.002),
		"model_partial": modelMetrics(99, 99, 99, 99, 0.001),
	}
	comprehensive := map[string]*metrics.ComprehensiveMetrics{
		"model_full": {SummaryStats: metrics.SummaryStats{
			TestCountByTask: map[string]int{"summary": 30, "quiz": 10, "flashcards": 10},
		}},
		"model_partial": {SummaryStats: metrics.SummaryStats{
			TestCountByTask: map[string]int{"summary": 30, "quiz": 0, "flashcards": 0},
		}},
	}

	c := metrics.Comparative(all, comprehensive, nil)
	if len(c.Rankings["by_overall_score"]) != 1 || c.Rankings["by_overall_score"][0] != "model_full" {
		t.Errorf("by_overall_score: %v", c.Rankings["by_overall_score"])
	}
	status := c.ModelStatus["model_partial"]
	if !status.IsPartial || status.EligibleForOverall {
		t.Errorf("partial status: %+v", status)
	}
	found := false
	for _, task := range status.MissingRequirements {
		if task == "quiz" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing requirements: %v", status.MissingRequirements)
	}
	// Partial models still appear in per-criteria rankings.
	if len(c.Rankings["by_content_quality"]) != 2 {
		t.Errorf("by_content_quality should include all models: %v", c.Rankings["by_content_quality"])
	}
}

func TestComparativeMarksOverlappingCIsAsTie(t *testing.T) {
	a := modelMetrics(85, 95.5, 90, 90.3, 0.002)
	a.ContentQuality.CILower, a.ContentQuality.CIUpper = 94.3, 96.7
	b := modelMetrics(84, 94.8, 89, 89.4, 0.003)
	b.ContentQuality.CILower, b.ContentQuality.CIUpper = 93.3, 96.3

	c := metrics.Comparative(map[string]*metrics.ModelMetrics{
		"model_a": a,
		"model_b": b,
	}, nil, nil)

	rows := c.RankingDetails["by_content_quality"]
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].ModelID != "model_a" {
		t.Errorf("top row: %+v", rows[0])
	}
	if !rows[0].IsStatisticalTie || rows[0].SignificanceMarker != "*" {
		t.Errorf("overlapping CIs not flagged: %+v", rows[0])
	}
}

func TestComprehensiveEmpty(t *testing.T) {
	if c := metrics.Comprehensive(nil, nil); c != nil {
		t.Errorf("empty results: got %+v", c)
	}
	failed := []result.BenchmarkResult{{ModelID: "m", Task: "summary", Error: "timeout"}}
	if c := metrics.Comprehensive(failed, nil); c != nil {
		t.Error("all-failed results should yield nil")
	}
}

func TestComprehensiveBreakdowns(t *testing.T) {
	mk := func(task, topic, format string, reliability float64) result.BenchmarkResult {
		r := rec(reliability, 80, map[string]float64{"quality": 80})
		r.Task = task
		r.TestCaseTopic = topic
		r.TestCaseFormat = format
		return r
	}
	results := []result.BenchmarkResult{
		mk("summary", "physics", "academic", 90),
		mk("summary", "chemistry", "ocr_like", 80),
		mk("quiz", "physics", "academic", 70),
	}

	c := metrics.Comprehensive(results, nil)
	if c.Overall.TestCount != 3 {
		t.Errorf("overall test count: %d", c.Overall.TestCount)
	}
	if len(c.ByTask) != 2 {
		t.Errorf("by_task groups: %v", len(c.ByTask))
	}
	if c.ByTask["summary"].TestCount != 2 {
		t.Errorf("summary count: %d", c.ByTask["summary"].TestCount)
	}
	if _, ok := c.ByTask["flashcards"]; ok {
		t.Error("empty task group should be omitted")
	}
	if c.ByTopic["physics"].TestCount != 2 {
		t.Errorf("physics count: %d", c.ByTopic["physics"].TestCount)
	}
	if c.ByTaskAndTopic["summary"]["chemistry"].TestCount != 1 {
		t.Error("task x topic breakdown missing")
	}
	if c.SummaryStats.TestCountByTask["flashcards"] != 0 {
		t.Errorf("flashcards count: %d", c.SummaryStats.TestCountByTask["flashcards"])
	}
	if len(c.SummaryStats.TopicsTested) != 2 {
		t.Errorf("topics tested: %v", c.SummaryStats.TopicsTested)
	}
}

func TestComprehensiveSkipsFailedRecords(t *testing.T) {
	ok := rec(90, 80, map[string]float64{"quality": 80})
	bad := rec(1, 1, nil)
	bad.Error = "timeout"

	c := metrics.Comprehensive([]result.BenchmarkResult{ok, bad}, nil)
	if c.Overall.TestCount != 1 {
		t.Errorf("failed record counted: %d", c.Overall.TestCount)
	}
}
