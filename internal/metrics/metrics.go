// Package metrics aggregates benchmark records into per-model
// statistics and comparative rankings. All scores live on a 1-100
// scale; legacy corpora recorded on 0-10 are detected and upscaled
// during aggregation.
package metrics

import (
	"math"
	"sort"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/result"
	"github.com/signalnine/pantheon/internal/stats"
)

// Overall score composition.
const (
	overallBaseWeight    = 0.5
	overallFactualWeight = 0.3
	overallAverageWeight = 0.2
)

// Universal evaluation weights. technical_correctness is tracked but
// carries no weight in the universal score.
const (
	weightFactualAccuracy  = 0.30
	weightCompleteness     = 0.25
	weightClarityStructure = 0.20
	weightLanguageQuality  = 0.15
	weightUsability        = 0.10
)

// EvaluationDimensions are the six universal criteria extracted from
// judge consensus scores.
var EvaluationDimensions = []string{
	"factual_accuracy",
	"completeness",
	"clarity_structure",
	"language_quality",
	"usability",
	"technical_correctness",
}

// Reliability and consistency penalties applied to the overall score.
const (
	reliabilityLowThreshold    = 50.0
	reliabilityMediumThreshold = 70.0
	reliabilityHeavyPenalty    = 0.3
	reliabilityModeratePenalty = 0.7
	consistencyMaxPenalty      = 0.2
	consistencyVarianceDivisor = 200.0
)

const defaultConfidence = 0.95

// Percentiles computes the standard percentile set with linear
// interpolation. Empty input yields an empty map.
func Percentiles(values []float64) map[string]float64 {
	if len(values) == 0 {
		return map[string]float64{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)

	at := func(p float64) float64 {
		if n == 1 {
			return sorted[0]
		}
		index := float64(n-1) * p
		lower := int(index)
		upper := lower + 1
		if upper > n-1 {
			upper = n - 1
		}
		weight := index - float64(lower)
		return sorted[lower]*(1-weight) + sorted[upper]*weight
	}

	return map[string]float64{
		"p0":   sorted[0],
		"p25":  at(0.25),
		"p50":  at(0.50),
		"p75":  at(0.75),
		"p95":  at(0.95),
		"p99":  at(0.99),
		"p100": sorted[n-1],
	}
}

// Distribution summarizes one score series.
type Distribution struct {
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	StdDev      float64            `json:"std_dev"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	CILower     float64            `json:"ci_95_lower"`
	CIUpper     float64            `json:"ci_95_upper"`
	Percentiles map[string]float64 `json:"percentiles"`
}

func newDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{Percentiles: map[string]float64{}}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	ci := stats.ComputeCI(values, defaultConfidence)
	return Distribution{
		Mean:        stats.Mean(values),
		Median:      stats.Median(values),
		StdDev:      stats.StdDev(values),
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		CILower:     ci.CILower,
		CIUpper:     ci.CIUpper,
		Percentiles: Percentiles(values),
	}
}

// CostStats summarizes spend across a result set.
type CostStats struct {
	Total       float64            `json:"total"`
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// LatencyStats summarizes generation latency.
type LatencyStats struct {
	Mean        float64            `json:"mean"`
	P50         float64            `json:"p50"`
	P95         float64            `json:"p95"`
	P99         float64            `json:"p99"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// CategoryScore pairs a dimension mean with the weight it carries in
// the universal score.
type CategoryScore struct {
	Mean   float64 `json:"mean"`
	Weight float64 `json:"weight"`
}

// ModelMetrics is the full aggregation for one model (or one slice of
// its results, when grouped by task, topic, or format).
type ModelMetrics struct {
	Reliability          Distribution `json:"reliability"`
	ContentQuality       Distribution `json:"content_quality"`
	FactualAccuracy      Distribution `json:"factual_accuracy"`
	Completeness         Distribution `json:"completeness"`
	ClarityStructure     Distribution `json:"clarity_structure"`
	LanguageQuality      Distribution `json:"language_quality"`
	Usability            Distribution `json:"usability"`
	TechnicalCorrectness Distribution `json:"technical_correctness"`

	Cost    CostStats    `json:"cost"`
	Latency LatencyStats `json:"latency"`

	TestCount            int `json:"test_count"`
	QualitySampleCount   int `json:"quality_sample_count"`
	QualityExcludedCount int `json:"quality_excluded_count"`

	CostPerQualityPoint     float64 `json:"cost_per_quality_point"`
	CostPerReliabilityPoint float64 `json:"cost_per_reliability_point"`

	CombinedScore          float64 `json:"combined_score"`
	OverallScore           float64 `json:"overall_score"`
	UniversalWeightedScore float64 `json:"universal_weighted_score"`

	QualityCategories map[string]CategoryScore `json:"quality_categories"`
}

// dimension looks up one universal dimension distribution by name.
func (m *ModelMetrics) dimension(name string) *Distribution {
	switch name {
	case "factual_accuracy":
		return &m.FactualAccuracy
	case "completeness":
		return &m.Completeness
	case "clarity_structure":
		return &m.ClarityStructure
	case "language_quality":
		return &m.LanguageQuality
	case "usability":
		return &m.Usability
	case "technical_correctness":
		return &m.TechnicalCorrectness
	}
	return nil
}

// qualitySource extracts the per-record quality score. Judge consensus
// dimensions take priority in task-specific order; records without any
// of them fall back to the stored content quality score.
func qualitySource(r *result.BenchmarkResult) (float64, bool) {
	if r.JudgeEvaluation != nil {
		for _, dim := range []string{"quality", "question_quality", "clarity"} {
			if s, ok := r.JudgeEvaluation.AggregatedScores[dim]; ok {
				return s.Mean, true
			}
		}
	}
	if r.ContentQualityScore > 0 {
		return r.ContentQualityScore, true
	}
	return 0, false
}

// confident reports whether a record's judge consensus is trustworthy
// under the strict filter.
func confident(r *result.BenchmarkResult, minJudgeCount int) bool {
	if r.JudgeEvaluation == nil {
		return true
	}
	if r.JudgeEvaluation.LowConfidence {
		return false
	}
	return r.JudgeEvaluation.JudgeCount == 0 || r.JudgeEvaluation.JudgeCount >= minJudgeCount
}

type scoringOptions struct {
	reliabilityWeight float64
	qualityWeight     float64
	strict            bool
	minJudgeCount     int
}

func optionsFrom(cfg *config.Config) scoringOptions {
	opts := scoringOptions{
		reliabilityWeight: 0.3,
		qualityWeight:     0.7,
		minJudgeCount:     3,
	}
	if cfg != nil {
		opts.reliabilityWeight = cfg.Scoring.ReliabilityWeight
		opts.qualityWeight = cfg.Scoring.QualityWeight
		opts.strict = cfg.Scoring.JudgeQualityFilter == config.FilterStrict
		if cfg.Scoring.MinJudgeCount > 0 {
			opts.minJudgeCount = cfg.Scoring.MinJudgeCount
		}
	}
	return opts
}

// Aggregate computes the full per-model metrics over a result slice.
// Returns nil for an empty slice.
func Aggregate(results []result.BenchmarkResult, cfg *config.Config) *ModelMetrics {
	if len(results) == 0 {
		return nil
	}
	opts := optionsFrom(cfg)

	var reliability, quality, costs, latencies []float64
	dimensions := make(map[string][]float64, len(EvaluationDimensions))
	excluded := 0

	for i := range results {
		r := &results[i]
		reliability = append(reliability, r.ReliabilityScore)
		costs = append(costs, r.Cost)
		latencies = append(latencies, r.LatencyMS)

		usable := !opts.strict || confident(r, opts.minJudgeCount)
		if q, ok := qualitySource(r); ok {
			if usable {
				quality = append(quality, q)
			} else {
				excluded++
			}
		}
		if !usable || r.JudgeEvaluation == nil {
			continue
		}
		for _, dim := range EvaluationDimensions {
			if s, ok := r.JudgeEvaluation.AggregatedScores[dim]; ok {
				dimensions[dim] = append(dimensions[dim], s.Mean)
			}
		}
	}

	// Legacy corpora recorded everything on 0-10. If every score sits
	// in that range, upscale before aggregating so mixed-era metrics
	// stay comparable.
	if legacyScale(reliability, quality, dimensions) {
		scale(reliability, 10)
		scale(quality, 10)
		for _, values := range dimensions {
			scale(values, 10)
		}
	}

	m := &ModelMetrics{
		Reliability:          newDistribution(reliability),
		ContentQuality:       newDistribution(quality),
		TestCount:            len(results),
		QualitySampleCount:   len(quality),
		QualityExcludedCount: excluded,
	}
	for _, dim := range EvaluationDimensions {
		*m.dimension(dim) = newDistribution(dimensions[dim])
	}

	latencyPct := Percentiles(latencies)
	m.Cost = CostStats{
		Total:       sum(costs),
		Mean:        stats.Mean(costs),
		Median:      stats.Median(costs),
		Percentiles: Percentiles(costs),
	}
	m.Latency = LatencyStats{
		Mean:        stats.Mean(latencies),
		P50:         latencyPct["p50"],
		P95:         latencyPct["p95"],
		P99:         latencyPct["p99"],
		Percentiles: latencyPct,
	}

	if m.Cost.Total > 0 && m.ContentQuality.Mean > 0 {
		m.CostPerQualityPoint = m.Cost.Total / (m.ContentQuality.Mean * float64(len(results)))
		if m.Reliability.Mean > 0 {
			m.CostPerReliabilityPoint = m.Cost.Total / (m.Reliability.Mean * float64(len(results)))
		}
	}

	m.CombinedScore = m.Reliability.Mean*opts.reliabilityWeight + m.ContentQuality.Mean*opts.qualityWeight
	m.OverallScore = overallScore(m, opts, len(dimensions["factual_accuracy"]) > 0)
	m.UniversalWeightedScore = universalWeightedScore(m, dimensions)
	m.QualityCategories = qualityCategories(m, dimensions)

	return m
}

// overallScore combines reliability, quality, factual accuracy, and
// consistency into one headline number, penalizing models too
// unreliable or erratic for automation.
func overallScore(m *ModelMetrics, opts scoringOptions, haveFactual bool) float64 {
	reliabilityMean := m.Reliability.Mean
	qualityMean := m.ContentQuality.Mean
	factualMean := qualityMean
	if haveFactual {
		factualMean = m.FactualAccuracy.Mean
	}

	reliabilityPenalty := 1.0
	if reliabilityMean < reliabilityLowThreshold {
		reliabilityPenalty = reliabilityHeavyPenalty
	} else if reliabilityMean < reliabilityMediumThreshold {
		reliabilityPenalty = reliabilityModeratePenalty
	}

	consistencyPenalty := 1.0 - math.Min(
		consistencyMaxPenalty,
		(m.Reliability.StdDev+m.ContentQuality.StdDev)/consistencyVarianceDivisor,
	)

	base := (reliabilityMean*opts.reliabilityWeight + qualityMean*opts.qualityWeight) *
		reliabilityPenalty * consistencyPenalty * overallBaseWeight
	factual := factualMean * overallFactualWeight
	average := (reliabilityMean + qualityMean) / 2 * overallAverageWeight

	return clampScore(base + factual + average)
}

// universalWeightedScore weights the five scored universal dimensions;
// a dimension no judge returned defaults to the scale midpoint.
func universalWeightedScore(m *ModelMetrics, dimensions map[string][]float64) float64 {
	get := func(dim string) float64 {
		if len(dimensions[dim]) > 0 {
			return m.dimension(dim).Mean
		}
		return 50.0
	}
	weighted := get("factual_accuracy")*weightFactualAccuracy +
		get("completeness")*weightCompleteness +
		get("clarity_structure")*weightClarityStructure +
		get("language_quality")*weightLanguageQuality +
		get("usability")*weightUsability
	return clampScore(weighted)
}

func qualityCategories(m *ModelMetrics, dimensions map[string][]float64) map[string]CategoryScore {
	weights := map[string]float64{
		"factual_accuracy":  weightFactualAccuracy,
		"completeness":      weightCompleteness,
		"clarity_structure": weightClarityStructure,
		"language_quality":  weightLanguageQuality,
		"usability":         weightUsability,
	}
	out := make(map[string]CategoryScore, len(weights))
	for dim, weight := range weights {
		mean := 50.0
		if len(dimensions[dim]) > 0 {
			mean = m.dimension(dim).Mean
		}
		out[dim] = CategoryScore{Mean: mean, Weight: weight}
	}
	return out
}

func legacyScale(reliability, quality []float64, dimensions map[string][]float64) bool {
	var all []float64
	all = append(all, reliability...)
	all = append(all, quality...)
	for _, values := range dimensions {
		all = append(all, values...)
	}
	if len(all) == 0 {
		return false
	}
	maxVal := all[0]
	minPos := math.Inf(1)
	for _, v := range all {
		if v > maxVal {
			maxVal = v
		}
		if v > 0 && v < minPos {
			minPos = v
		}
	}
	return maxVal > 0 && maxVal <= 10 && !math.IsInf(minPos, 1)
}

func scale(values []float64, factor float64) {
	for i := range values {
		values[i] *= factor
	}
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func clampScore(v float64) float64 {
	return math.Max(1.0, math.Min(100.0, v))
}
