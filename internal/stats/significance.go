package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/signalnine/pantheon/internal/result"
)

// Metric names usable with CompareAllModels.
const (
	MetricContentQuality = "content_quality_score"
	MetricReliability    = "reliability_score"
)

// minCommonCases is the smallest paired sample worth comparing.
const minCommonCases = 2

// PairedComparison is the outcome of a paired difference test between
// two models on one metric.
type PairedComparison struct {
	ModelA        string  `json:"model_a"`
	ModelB        string  `json:"model_b"`
	Metric        string  `json:"metric"`
	MeanDiff      float64 `json:"mean_diff"`
	CILower       float64 `json:"ci_95_lower"`
	CIUpper       float64 `json:"ci_95_upper"`
	MarginOfError float64 `json:"margin_of_error"`
	CohensD       Float   `json:"cohens_d"`
	PValueApprox  float64 `json:"p_value_approx"`
	IsSignificant bool    `json:"is_significant"`
	CommonN       int     `json:"common_n"`
}

// ComparePaired runs a paired difference test over two aligned score
// slices. Significance requires the CI to exclude zero and at least a
// small effect size.
func ComparePaired(modelA, modelB, metric string, valuesA, valuesB []float64, confidence float64) PairedComparison {
	if len(valuesA) != len(valuesB) || len(valuesA) == 0 {
		return PairedComparison{
			ModelA: modelA, ModelB: modelB, Metric: metric,
			PValueApprox: 1.0,
		}
	}

	diffs := make([]float64, len(valuesA))
	for i := range valuesA {
		diffs[i] = valuesA[i] - valuesB[i]
	}
	n := len(diffs)
	meanDiff := Mean(diffs)
	stderr := StdDev(diffs) / math.Sqrt(float64(n))
	margin := TCritical(confidence, n-1) * stderr

	d := CohensD(valuesA, valuesB)
	lower := meanDiff - margin
	upper := meanDiff + margin
	excludesZero := lower > 0 || upper < 0

	p := 0.5
	if excludesZero {
		p = 1 - confidence
	}

	return PairedComparison{
		ModelA:        modelA,
		ModelB:        modelB,
		Metric:        metric,
		MeanDiff:      round3(meanDiff),
		CILower:       round3(lower),
		CIUpper:       round3(upper),
		MarginOfError: round3(margin),
		CohensD:       Float(d),
		PValueApprox:  p,
		IsSignificant: excludesZero && math.Abs(d) >= 0.2,
		CommonN:       n,
	}
}

func metricValue(r *result.BenchmarkResult, metric string) float64 {
	switch metric {
	case MetricReliability:
		return r.ReliabilityScore
	default:
		return r.ContentQualityScore
	}
}

// CompareAllModels runs paired comparisons for every model pair over
// the test cases both models completed. Pairs with fewer than two
// common cases are skipped.
func CompareAllModels(results []result.BenchmarkResult, models []string, metric string, confidence float64) []PairedComparison {
	byModelCase := make(map[string]map[string]float64)
	for i := range results {
		r := &results[i]
		if r.Failed() {
			continue
		}
		key := r.TestCaseID + ":" + r.Task
		if byModelCase[r.ModelID] == nil {
			byModelCase[r.ModelID] = make(map[string]float64)
		}
		byModelCase[r.ModelID][key] = metricValue(r, metric)
	}

	var comparisons []PairedComparison
	for i, modelA := range models {
		for _, modelB := range models[i+1:] {
			var common []string
			for key := range byModelCase[modelA] {
				if _, ok := byModelCase[modelB][key]; ok {
					common = append(common, key)
				}
			}
			if len(common) < minCommonCases {
				continue
			}
			sort.Strings(common)
			valuesA := make([]float64, len(common))
			valuesB := make([]float64, len(common))
			for j, key := range common {
				valuesA[j] = byModelCase[modelA][key]
				valuesB[j] = byModelCase[modelB][key]
			}
			comparisons = append(comparisons, ComparePaired(modelA, modelB, metric, valuesA, valuesB, confidence))
		}
	}
	return comparisons
}

// ModelMetricsWithCI computes per-model confidence intervals for the
// core metrics, optionally restricted to a single task.
func ModelMetricsWithCI(results []result.BenchmarkResult, modelID, task string, confidence float64) map[string]MetricWithCI {
	var reliability, quality, factual, completeness []float64
	for i := range results {
		r := &results[i]
		if r.ModelID != modelID || r.Failed() {
			continue
		}
		if task != "" && r.Task != task {
			continue
		}
		reliability = append(reliability, r.ReliabilityScore)
		quality = append(quality, r.ContentQualityScore)
		if r.JudgeEvaluation != nil {
			if s, ok := r.JudgeEvaluation.AggregatedScores["factual_accuracy"]; ok {
				factual = append(factual, s.Mean)
			}
			if s, ok := r.JudgeEvaluation.AggregatedScores["completeness"]; ok {
				completeness = append(completeness, s.Mean)
			}
		}
	}
	if len(reliability) == 0 {
		return nil
	}
	return map[string]MetricWithCI{
		"reliability":      ComputeCI(reliability, confidence),
		"content_quality":  ComputeCI(quality, confidence),
		"factual_accuracy": ComputeCI(factual, confidence),
		"completeness":     ComputeCI(completeness, confidence),
	}
}

// RankingEntry is one row of a significance-aware ranking.
type RankingEntry struct {
	Rank        int          `json:"rank"`
	ModelID     string       `json:"model_id"`
	Score       MetricWithCI `json:"score"`
	IsTie       bool         `json:"is_tie"`
	DisplayRank string       `json:"display_rank"`
}

// RankWithSignificance orders models by mean score and annotates pairs
// whose difference is not significant. A model tied with its
// predecessor shares that rank; ties with the successor show as "N=".
func RankWithSignificance(modelMetrics map[string]map[string]MetricWithCI, comparisons []PairedComparison, metric string) []RankingEntry {
	type scored struct {
		modelID string
		m       MetricWithCI
	}
	models := make([]scored, 0, len(modelMetrics))
	for id, metrics := range modelMetrics {
		models = append(models, scored{id, metrics[metric]})
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].m.Mean != models[j].m.Mean {
			return models[i].m.Mean > models[j].m.Mean
		}
		return models[i].modelID < models[j].modelID
	})

	notSignificant := func(a, b string) bool {
		for _, c := range comparisons {
			if (c.ModelA == a && c.ModelB == b) || (c.ModelA == b && c.ModelB == a) {
				return !c.IsSignificant
			}
		}
		return false
	}

	rankings := make([]RankingEntry, 0, len(models))
	for i, s := range models {
		tieWithNext := i < len(models)-1 && notSignificant(s.modelID, models[i+1].modelID)
		tieWithPrev := i > 0 && notSignificant(s.modelID, models[i-1].modelID)

		rank := i + 1
		if tieWithPrev && len(rankings) > 0 {
			rank = rankings[len(rankings)-1].Rank
		}
		display := fmt.Sprintf("%d", rank)
		if tieWithNext {
			display += "="
		}
		rankings = append(rankings, RankingEntry{
			Rank:        rank,
			ModelID:     s.modelID,
			Score:       s.m,
			IsTie:       tieWithNext || tieWithPrev,
			DisplayRank: display,
		})
	}
	return rankings
}

// HighVarianceThreshold flags judge dimensions whose cross-judge
// variance suggests the panel disagreed badly.
const HighVarianceThreshold = 100.0

// JudgeRobustness summarizes panel consensus quality across a corpus.
type JudgeRobustness struct {
	TotalEvaluations       int            `json:"total_evaluations"`
	JudgeCountDistribution map[string]any `json:"judge_count_distribution"`
	VarianceStatistics     map[string]any `json:"variance_statistics"`
	LowConsensusThreshold  float64        `json:"low_consensus_threshold"`
	Recommendation         string         `json:"recommendation"`
}

// AnalyzeJudgeRobustness inspects consensus metrics across all records
// and flags high-variance evaluations.
func AnalyzeJudgeRobustness(results []result.BenchmarkResult) JudgeRobustness {
	var variances []float64
	var judgeCounts []float64
	highVariance := 0

	for i := range results {
		r := &results[i]
		if r.Failed() || r.JudgeEvaluation == nil {
			continue
		}
		judgeCounts = append(judgeCounts, float64(r.JudgeEvaluation.JudgeCount))
		for key, value := range r.JudgeEvaluation.ConsensusMetrics {
			if len(key) > 9 && key[len(key)-9:] == "_variance" {
				variances = append(variances, value)
				if value > HighVarianceThreshold {
					highVariance++
				}
			}
		}
	}

	countDist := map[string]any{"mean": 0.0, "min": 0.0, "max": 0.0}
	if len(judgeCounts) > 0 {
		sorted := append([]float64(nil), judgeCounts...)
		sort.Float64s(sorted)
		countDist = map[string]any{
			"mean": round2(Mean(judgeCounts)),
			"min":  sorted[0],
			"max":  sorted[len(sorted)-1],
		}
	}

	varStats := map[string]any{
		"mean": 0.0, "median": 0.0,
		"high_variance_count": highVariance,
		"high_variance_pct":   0.0,
	}
	if len(variances) > 0 {
		varStats["mean"] = round2(Mean(variances))
		varStats["median"] = round2(Median(variances))
		varStats["high_variance_pct"] = round1(100 * float64(highVariance) / float64(len(variances)))
	}

	recommendation := "Consensus quality acceptable"
	if highVariance > 0 {
		recommendation = fmt.Sprintf("Investigate evaluations with variance > %.0f", HighVarianceThreshold)
	}

	return JudgeRobustness{
		TotalEvaluations:       len(judgeCounts),
		JudgeCountDistribution: countDist,
		VarianceStatistics:     varStats,
		LowConsensusThreshold:  HighVarianceThreshold,
		Recommendation:         recommendation,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
