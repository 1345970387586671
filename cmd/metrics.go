package cmd

import (
	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/metrics"
	"github.com/signalnine/pantheon/internal/result"
)

// computeMetrics builds the full metrics payload for a corpus:
// per-model comprehensive breakdowns plus the cross-model comparison.
func computeMetrics(results []result.BenchmarkResult, cfg *config.Config) map[string]any {
	byModel := map[string][]result.BenchmarkResult{}
	for _, r := range results {
		byModel[r.ModelID] = append(byModel[r.ModelID], r)
	}

	comprehensive := make(map[string]*metrics.ComprehensiveMetrics, len(byModel))
	flat := make(map[string]*metrics.ModelMetrics, len(byModel))
	for model, recs := range byModel {
		cm := metrics.Comprehensive(recs, cfg)
		if cm == nil {
			continue
		}
		comprehensive[model] = cm
		flat[model] = cm.Overall
	}

	return map[string]any{
		"model_metrics":               flat,
		"model_metrics_comprehensive": comprehensive,
		"comparative_metrics":         metrics.Comparative(flat, comprehensive, cfg),
	}
}
