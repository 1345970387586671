package metrics

import (
	"math"
	"sort"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/stats"
)

// RankingDetail is one annotated row of a comparative ranking.
type RankingDetail struct {
	Rank               int     `json:"rank"`
	ModelID            string  `json:"model_id"`
	Mean               float64 `json:"mean"`
	CILower            float64 `json:"ci_95_lower"`
	CIUpper            float64 `json:"ci_95_upper"`
	IsStatisticalTie   bool    `json:"is_statistical_tie"`
	SignificanceMarker string  `json:"significance_marker"`
}

// ModelStatus records task coverage for ranking eligibility. A model
// that skipped a required task ranks in per-criteria lists but not in
// the overall leaderboard.
type ModelStatus struct {
	IsPartial           bool     `json:"is_partial"`
	EligibleForOverall  bool     `json:"eligible_for_overall"`
	MissingRequirements []string `json:"missing_requirements"`
}

// ComparativeMetrics ranks all models against each other.
type ComparativeMetrics struct {
	Rankings       map[string][]string        `json:"rankings"`
	RankingDetails map[string][]RankingDetail `json:"ranking_details"`
	ValueScores    map[string]stats.Float     `json:"value_scores"`
	ModelStatus    map[string]ModelStatus     `json:"model_status"`
	ModelCount     int                        `json:"model_count"`
}

// Comparative builds rankings across all models. comprehensive is
// optional; when present it drives partial-coverage exclusion from the
// overall ranking. Returns nil when there are no models.
func Comparative(allMetrics map[string]*ModelMetrics, comprehensive map[string]*ComprehensiveMetrics, cfg *config.Config) *ComparativeMetrics {
	if len(allMetrics) == 0 {
		return nil
	}

	models := make([]string, 0, len(allMetrics))
	for id := range allMetrics {
		models = append(models, id)
	}
	sort.Strings(models)

	status := coverageStatus(models, comprehensive, cfg)
	var eligible []string
	for _, id := range models {
		if status[id].EligibleForOverall {
			eligible = append(eligible, id)
		}
	}

	valueScores := make(map[string]stats.Float, len(models))
	for id, m := range allMetrics {
		switch {
		case m.Cost.Total > 0:
			valueScores[id] = stats.Float(m.CombinedScore / m.Cost.Total)
		case m.CombinedScore > 0:
			valueScores[id] = stats.Float(math.Inf(1))
		default:
			valueScores[id] = 0
		}
	}

	descBy := func(ids []string, score func(*ModelMetrics) float64) []string {
		ranked := append([]string(nil), ids...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return score(allMetrics[ranked[i]]) > score(allMetrics[ranked[j]])
		})
		return ranked
	}
	ascBy := func(ids []string, score func(*ModelMetrics) float64) []string {
		ranked := append([]string(nil), ids...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return score(allMetrics[ranked[i]]) < score(allMetrics[ranked[j]])
		})
		return ranked
	}

	rankings := map[string][]string{
		"by_reliability":      descBy(models, func(m *ModelMetrics) float64 { return m.Reliability.Mean }),
		"by_content_quality":  descBy(models, func(m *ModelMetrics) float64 { return m.ContentQuality.Mean }),
		"by_combined_score":   descBy(models, func(m *ModelMetrics) float64 { return m.CombinedScore }),
		"by_overall_score":    descBy(eligible, func(m *ModelMetrics) float64 { return m.OverallScore }),
		"by_universal_score":  descBy(models, func(m *ModelMetrics) float64 { return m.UniversalWeightedScore }),
		"by_cost_effectiveness": ascBy(models, func(m *ModelMetrics) float64 {
			return m.CostPerQualityPoint
		}),
		"by_reliability_cost": ascBy(models, func(m *ModelMetrics) float64 {
			return m.CostPerReliabilityPoint
		}),
	}

	byValue := append([]string(nil), models...)
	sort.SliceStable(byValue, func(i, j int) bool {
		return float64(valueScores[byValue[i]]) > float64(valueScores[byValue[j]])
	})
	rankings["by_value"] = byValue

	details := map[string][]RankingDetail{
		"by_reliability": rankingDetails(rankings["by_reliability"], allMetrics,
			func(m *ModelMetrics) Distribution { return m.Reliability }),
		"by_content_quality": rankingDetails(rankings["by_content_quality"], allMetrics,
			func(m *ModelMetrics) Distribution { return m.ContentQuality }),
	}

	return &ComparativeMetrics{
		Rankings:       rankings,
		RankingDetails: details,
		ValueScores:    valueScores,
		ModelStatus:    status,
		ModelCount:     len(models),
	}
}

func coverageStatus(models []string, comprehensive map[string]*ComprehensiveMetrics, cfg *config.Config) map[string]ModelStatus {
	required := config.KnownTasks()
	minPerTask := map[string]int{}
	if cfg != nil {
		if len(cfg.Tasks) > 0 {
			required = cfg.Tasks
		}
		minPerTask = cfg.Ranking.MinResultsPerTask
	}

	status := make(map[string]ModelStatus, len(models))
	for _, id := range models {
		comp, ok := comprehensive[id]
		if !ok || comp == nil {
			status[id] = ModelStatus{EligibleForOverall: true, MissingRequirements: []string{}}
			continue
		}
		var missing []string
		for _, task := range required {
			min := minPerTask[task]
			if min == 0 {
				min = 1
			}
			if comp.SummaryStats.TestCountByTask[task] < min {
				missing = append(missing, task)
			}
		}
		status[id] = ModelStatus{
			IsPartial:           len(missing) > 0,
			EligibleForOverall:  len(missing) == 0,
			MissingRequirements: append([]string{}, missing...),
		}
	}
	return status
}

func rankingDetails(ranked []string, allMetrics map[string]*ModelMetrics, dist func(*ModelMetrics) Distribution) []RankingDetail {
	overlaps := func(a, b Distribution) bool {
		return !(a.CIUpper < b.CILower || b.CIUpper < a.CILower)
	}

	rows := make([]RankingDetail, 0, len(ranked))
	for i, id := range ranked {
		d := dist(allMetrics[id])
		tie := false
		if i > 0 && overlaps(d, dist(allMetrics[ranked[i-1]])) {
			tie = true
		}
		if i < len(ranked)-1 && overlaps(d, dist(allMetrics[ranked[i+1]])) {
			tie = true
		}
		marker := ""
		if tie {
			marker = "*"
		}
		rows = append(rows, RankingDetail{
			Rank:               i + 1,
			ModelID:            id,
			Mean:               d.Mean,
			CILower:            d.CILower,
			CIUpper:            d.CIUpper,
			IsStatisticalTie:   tie,
			SignificanceMarker: marker,
		})
	}
	return rows
}
