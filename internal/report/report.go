package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/metrics"
	"github.com/signalnine/pantheon/internal/result"
)

type ModelSummary struct {
	Model          string  `json:"model"`
	Results        int     `json:"results"`
	SuccessRate    float64 `json:"success_rate"`
	Reliability    float64 `json:"reliability"`
	ContentQuality float64 `json:"content_quality"`
	CombinedScore  float64 `json:"combined_score"`
	OverallScore   float64 `json:"overall_score"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	MeanLatencyMS  float64 `json:"mean_latency_ms"`
}

// Generate summarizes a result corpus per model and writes it in the
// requested format.
func Generate(results []result.BenchmarkResult, cfg *config.Config, format string, w io.Writer) error {
	summaries := aggregate(results, cfg)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func aggregate(results []result.BenchmarkResult, cfg *config.Config) []ModelSummary {
	byModel := map[string][]result.BenchmarkResult{}
	for _, r := range results {
		byModel[r.ModelID] = append(byModel[r.ModelID], r)
	}

	var summaries []ModelSummary
	for model, recs := range byModel {
		// Errored combinations count toward the success rate but
		// never feed score, cost, or latency statistics.
		var ok []result.BenchmarkResult
		var totalLatency float64
		for _, r := range recs {
			if r.Failed() {
				continue
			}
			ok = append(ok, r)
			totalLatency += r.LatencyMS
		}
		s := ModelSummary{
			Model:       model,
			Results:     len(recs),
			SuccessRate: float64(len(ok)) / float64(len(recs)),
		}
		if m := metrics.Aggregate(ok, cfg); m != nil {
			s.Reliability = m.Reliability.Mean
			s.ContentQuality = m.ContentQuality.Mean
			s.CombinedScore = m.CombinedScore
			s.OverallScore = m.OverallScore
			s.TotalCostUSD = m.Cost.Total
			s.MeanLatencyMS = totalLatency / float64(len(ok))
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CombinedScore != summaries[j].CombinedScore {
			return summaries[i].CombinedScore > summaries[j].CombinedScore
		}
		return summaries[i].Model < summaries[j].Model
	})
	return summaries
}

func writeTable(summaries []ModelSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tRESULTS\tSUCCESS\tRELIABILITY\tQUALITY\tCOMBINED\tOVERALL\tCOST\tLATENCY")
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.1f\t%.1f\t%.1f\t%.1f\t$%.4f\t%.0fms\n",
			s.Model, s.Results, s.SuccessRate*100, s.Reliability, s.ContentQuality,
			s.CombinedScore, s.OverallScore, s.TotalCostUSD, s.MeanLatencyMS)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []ModelSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Model | Results | Success | Reliability | Quality | Combined | Overall | Cost | Latency |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %.1f | %.1f | %.1f | %.1f | $%.4f | %.0fms |\n",
			s.Model, s.Results, s.SuccessRate*100, s.Reliability, s.ContentQuality,
			s.CombinedScore, s.OverallScore, s.TotalCostUSD, s.MeanLatencyMS)
	}
	return nil
}

func writeJSON(summaries []ModelSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
