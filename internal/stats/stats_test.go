package stats_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/signalnine/pantheon/internal/judge"
	"github.com/signalnine/pantheon/internal/result"
	"github.com/signalnine/pantheon/internal/stats"
)

func TestTCritical(t *testing.T) {
	cases := []struct {
		confidence float64
		df         int
		want       float64
	}{
		{0.95, 100, 1.96},
		{0.99, 100, 2.576},
		{0.95, 8, 2.3},
		{0.95, 15, 2.1},
		{0.95, 25, 2.0},
	}
	for _, tc := range cases {
		if got := stats.TCritical(tc.confidence, tc.df); got != tc.want {
			t.Errorf("TCritical(%v, %d): got %v, want %v", tc.confidence, tc.df, got, tc.want)
		}
	}
}

func TestComputeCIEmpty(t *testing.T) {
	m := stats.ComputeCI(nil, 0.95)
	if m.Mean != 0 || m.N != 0 || m.CILower != 0 || m.CIUpper != 0 {
		t.Errorf("empty sample: %+v", m)
	}
}

func TestComputeCISingleValue(t *testing.T) {
	m := stats.ComputeCI([]float64{80}, 0.95)
	if m.Mean != 80 || m.StdDev != 0 {
		t.Errorf("single value: %+v", m)
	}
	if m.CILower != 80 || m.CIUpper != 80 {
		t.Errorf("single-value CI should collapse to the mean: %+v", m)
	}
}

func TestComputeCIBracketsMean(t *testing.T) {
	values := []float64{70, 75, 80, 85, 90}
	m := stats.ComputeCI(values, 0.95)
	if m.Mean != 80 {
		t.Errorf("mean: got %v", m.Mean)
	}
	if m.CILower >= m.Mean || m.CIUpper <= m.Mean {
		t.Errorf("CI does not bracket the mean: %+v", m)
	}
	if m.N != 5 {
		t.Errorf("n: got %d", m.N)
	}
}

func TestCohensDZeroVarianceSentinel(t *testing.T) {
	a := []float64{80, 80, 80}
	b := []float64{70, 70, 70}
	if d := stats.CohensD(a, b); !math.IsInf(d, 1) {
		t.Errorf("constant nonzero diff: got %v, want +Inf", d)
	}
	if d := stats.CohensD(a, a); d != 0 {
		t.Errorf("identical samples: got %v, want 0", d)
	}
}

func TestCohensDMismatchedLengths(t *testing.T) {
	if d := stats.CohensD([]float64{1, 2}, []float64{1}); d != 0 {
		t.Errorf("mismatched lengths: got %v, want 0", d)
	}
}

func TestFloatMarshalsInfAsNull(t *testing.T) {
	data, err := json.Marshal(stats.Float(math.Inf(1)))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("got %s, want null", data)
	}
	data, _ = json.Marshal(stats.Float(1.5))
	if string(data) != "1.5" {
		t.Errorf("finite value mangled: %s", data)
	}
}

func TestComparePairedSignificant(t *testing.T) {
	valuesA := []float64{90, 92, 88, 91, 89, 93, 90, 92, 88, 91}
	valuesB := []float64{70, 72, 68, 71, 69, 73, 70, 72, 68, 71}
	c := stats.ComparePaired("m/a", "m/b", stats.MetricContentQuality, valuesA, valuesB, 0.95)
	if !c.IsSignificant {
		t.Errorf("constant 20-point gap not significant: %+v", c)
	}
	if c.MeanDiff != 20 {
		t.Errorf("mean diff: got %v", c.MeanDiff)
	}
	if c.CILower <= 0 {
		t.Errorf("CI should exclude zero: %+v", c)
	}
}

func TestComparePairedNoise(t *testing.T) {
	valuesA := []float64{80, 70, 90, 75, 85}
	valuesB := []float64{82, 68, 91, 74, 84}
	c := stats.ComparePaired("m/a", "m/b", stats.MetricContentQuality, valuesA, valuesB, 0.95)
	if c.IsSignificant {
		t.Errorf("noise flagged significant: %+v", c)
	}
}

func record(model, task, testCase string, reliability, quality float64) result.BenchmarkResult {
	return result.BenchmarkResult{
		ModelID:             model,
		Task:                task,
		TestCaseID:          testCase,
		ReliabilityScore:    reliability,
		ContentQualityScore: quality,
	}
}

func TestCompareAllModelsSkipsThinOverlap(t *testing.T) {
	results := []result.BenchmarkResult{
		record("m/a", "summary", "tc1", 90, 85),
		record("m/b", "summary", "tc1", 80, 75),
		// Only one common case between a and b.
		record("m/a", "summary", "tc2", 91, 86),
		record("m/c", "summary", "tc9", 70, 65),
	}
	comps := stats.CompareAllModels(results, []string{"m/a", "m/b", "m/c"}, stats.MetricContentQuality, 0.95)
	if len(comps) != 0 {
		t.Errorf("expected no comparisons, got %d", len(comps))
	}
}

func TestCompareAllModelsPairsCommonCases(t *testing.T) {
	var results []result.BenchmarkResult
	for i, tc := range []string{"tc1", "tc2", "tc3"} {
		results = append(results,
			record("m/a", "summary", tc, 90, 85+float64(i)),
			record("m/b", "summary", tc, 80, 70+float64(i)),
		)
	}
	comps := stats.CompareAllModels(results, []string{"m/a", "m/b"}, stats.MetricContentQuality, 0.95)
	if len(comps) != 1 {
		t.Fatalf("got %d comparisons, want 1", len(comps))
	}
	if comps[0].CommonN != 3 {
		t.Errorf("common n: got %d, want 3", comps[0].CommonN)
	}
	if comps[0].MeanDiff != 15 {
		t.Errorf("mean diff: got %v, want 15", comps[0].MeanDiff)
	}
}

func TestCompareAllModelsIgnoresFailedRuns(t *testing.T) {
	results := []result.BenchmarkResult{
		record("m/a", "summary", "tc1", 90, 85),
		record("m/a", "summary", "tc2", 90, 85),
		record("m/b", "summary", "tc1", 80, 75),
		record("m/b", "summary", "tc2", 80, 75),
	}
	results[3].Error = "timeout"
	comps := stats.CompareAllModels(results, []string{"m/a", "m/b"}, stats.MetricContentQuality, 0.95)
	if len(comps) != 0 {
		t.Errorf("failed run counted toward overlap: %d comparisons", len(comps))
	}
}

func TestRankWithSignificanceTies(t *testing.T) {
	metrics := map[string]map[string]stats.MetricWithCI{
		"m/a": {"content_quality": {Mean: 90}},
		"m/b": {"content_quality": {Mean: 89}},
		"m/c": {"content_quality": {Mean: 60}},
	}
	comparisons := []stats.PairedComparison{
		{ModelA: "m/a", ModelB: "m/b", IsSignificant: false},
		{ModelA: "m/a", ModelB: "m/c", IsSignificant: true},
		{ModelA: "m/b", ModelB: "m/c", IsSignificant: true},
	}

	rankings := stats.RankWithSignificance(metrics, comparisons, "content_quality")
	if len(rankings) != 3 {
		t.Fatalf("got %d entries", len(rankings))
	}
	if rankings[0].ModelID != "m/a" || rankings[0].DisplayRank != "1=" || !rankings[0].IsTie {
		t.Errorf("top entry: %+v", rankings[0])
	}
	if rankings[1].Rank != 1 || !rankings[1].IsTie {
		t.Errorf("tied entry should share rank 1: %+v", rankings[1])
	}
	if rankings[2].Rank != 3 || rankings[2].IsTie {
		t.Errorf("clear third: %+v", rankings[2])
	}
}

func TestAnalyzeJudgeRobustnessFlagsHighVariance(t *testing.T) {
	results := []result.BenchmarkResult{
		{
			ModelID: "m/a", Task: "summary", TestCaseID: "tc1",
			JudgeEvaluation: &judge.Consensus{
				JudgeCount: 3,
				ConsensusMetrics: map[string]float64{
					"quality_variance":  150.0,
					"quality_agreement": 0.0066,
				},
			},
		},
		{
			ModelID: "m/b", Task: "summary", TestCaseID: "tc1",
			JudgeEvaluation: &judge.Consensus{
				JudgeCount: 3,
				ConsensusMetrics: map[string]float64{
					"quality_variance":  4.0,
					"quality_agreement": 0.2,
				},
			},
		},
	}

	r := stats.AnalyzeJudgeRobustness(results)
	if r.TotalEvaluations != 2 {
		t.Errorf("TotalEvaluations: got %d", r.TotalEvaluations)
	}
	if r.VarianceStatistics["high_variance_count"] != 1 {
		t.Errorf("high_variance_count: got %v", r.VarianceStatistics["high_variance_count"])
	}
	if r.Recommendation == "Consensus quality acceptable" {
		t.Error("high variance not surfaced in recommendation")
	}
}
