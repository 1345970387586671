package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/result"
	"github.com/signalnine/pantheon/internal/stats"
)

var (
	flagOutput     string
	flagConfidence float64
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute confidence intervals and pairwise significance",
		Long:  "Compare every model pair on paired test cases, rank models with statistical-tie annotations, and assess judge panel consensus. Writes a JSON report.",
		RunE:  runAnalyze,
	}
	cmd.Flags().StringVar(&flagOutput, "output", "", "report path (default <results-dir>/significance_report.json)")
	cmd.Flags().Float64Var(&flagConfidence, "confidence", 0.95, "confidence level")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	results, err := result.Load(cfg.Results.Dir)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no results in %s", cfg.Results.Dir)
	}

	models := modelsIn(results)
	fmt.Printf("Found %d models across %d results\n", len(models), len(results))

	metricsWithCI := map[string]map[string]stats.MetricWithCI{}
	for _, model := range models {
		if m := stats.ModelMetricsWithCI(results, model, "", flagConfidence); m != nil {
			metricsWithCI[model] = m
		}
	}

	qualityComparisons := stats.CompareAllModels(results, models, stats.MetricContentQuality, flagConfidence)
	reliabilityComparisons := stats.CompareAllModels(results, models, stats.MetricReliability, flagConfidence)

	rankings := stats.RankWithSignificance(metricsWithCI, qualityComparisons, "content_quality")
	robustness := stats.AnalyzeJudgeRobustness(results)

	report := map[string]any{
		"metadata": map[string]any{
			"confidence_level": flagConfidence,
			"total_models":     len(models),
			"total_results":    len(results),
			"generated_at":     time.Now().UTC().Format(time.RFC3339),
		},
		"model_metrics_with_ci": metricsWithCI,
		"pairwise_comparisons":  append(qualityComparisons, reliabilityComparisons...),
		"rankings": map[string]any{
			"by_content_quality": rankings,
		},
		"judge_robustness": robustness,
		"interpretation_guide": map[string]any{
			"significance_threshold": "CI excludes 0 AND |Cohen's d| >= 0.2",
			"tie_indicator":          "Models marked with = have overlapping CIs",
			"ci_overlap_rule":        "Overlapping CIs suggest no statistically clear winner",
			"effect_size_interpretation": map[string]float64{
				"small":  0.2,
				"medium": 0.5,
				"large":  0.8,
			},
		},
	}

	output := flagOutput
	if output == "" {
		output = filepath.Join(cfg.Results.Dir, "significance_report.json")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Printf("Significance report written to %s\n", output)

	fmt.Println("\nRanking by content quality:")
	for _, r := range rankings {
		marker := ""
		if r.IsTie {
			marker = " [TIE]"
		}
		fmt.Printf("  %s. %s  %.2f [%.2f, %.2f] n=%d%s\n",
			r.DisplayRank, r.ModelID, r.Score.Mean, r.Score.CILower, r.Score.CIUpper, r.Score.N, marker)
	}
	return nil
}

func modelsIn(results []result.BenchmarkResult) []string {
	seen := map[string]bool{}
	for i := range results {
		r := &results[i]
		if r.ModelID != "" && !r.Failed() {
			seen[r.ModelID] = true
		}
	}
	models := make([]string, 0, len(seen))
	for m := range seen {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
