// Package stats implements the significance machinery for model
// comparisons: confidence intervals, paired difference tests, effect
// sizes, and rankings that admit when two models are statistically
// indistinguishable.
package stats

import (
	"math"
	"sort"
	"strconv"
)

// Float marshals like float64 but encodes non-finite values as null so
// effect-size sentinels survive JSON encoding.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// MetricWithCI is a sample mean with its confidence interval.
type MetricWithCI struct {
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	N             int     `json:"n"`
	StdErr        float64 `json:"stderr"`
	CILower       float64 `json:"ci_95_lower"`
	CIUpper       float64 `json:"ci_95_upper"`
	MarginOfError float64 `json:"margin_of_error"`
}

// Overlaps reports whether two confidence intervals intersect.
func (m MetricWithCI) Overlaps(other MetricWithCI) bool {
	return !(m.CIUpper < other.CILower || other.CIUpper < m.CILower)
}

// TCritical approximates the two-sided t critical value. Above 30
// degrees of freedom the normal approximation is used; below, a
// conservative fixed value.
func TCritical(confidence float64, df int) float64 {
	if df > 30 {
		switch confidence {
		case 0.95:
			return 1.96
		case 0.99:
			return 2.576
		default:
			return 1.96 + (confidence-0.95)*4
		}
	}
	switch {
	case df <= 10:
		return 2.3
	case df <= 20:
		return 2.1
	default:
		return 2.0
	}
}

// ComputeCI computes the sample mean and its confidence interval.
// An empty sample yields the zero metric.
func ComputeCI(values []float64, confidence float64) MetricWithCI {
	if len(values) == 0 {
		return MetricWithCI{}
	}
	n := len(values)
	m := Mean(values)
	sd := StdDev(values)
	stderr := sd / math.Sqrt(float64(n))
	margin := TCritical(confidence, n-1) * stderr
	return MetricWithCI{
		Mean:          round3(m),
		StdDev:        round3(sd),
		N:             n,
		StdErr:        round3(stderr),
		CILower:       round3(m - margin),
		CIUpper:       round3(m + margin),
		MarginOfError: round3(margin),
	}
}

// Mean of a sample; 0 for an empty one.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median of a sample; the two middle values average for even sizes.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev is the sample standard deviation (n-1); 0 for fewer than two
// values.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := Mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(n-1))
}

// CohensD is the paired effect size: mean difference over the standard
// deviation of the differences. A zero-variance nonzero difference
// returns +/-Inf as a deliberate sentinel.
func CohensD(valuesA, valuesB []float64) float64 {
	if len(valuesA) != len(valuesB) || len(valuesA) == 0 {
		return 0
	}
	diffs := make([]float64, len(valuesA))
	for i := range valuesA {
		diffs[i] = valuesA[i] - valuesB[i]
	}
	meanDiff := Mean(diffs)
	if len(diffs) == 1 {
		return 0
	}
	sd := StdDev(diffs)
	if sd == 0 {
		if meanDiff == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return meanDiff / sd
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
