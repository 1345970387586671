package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/judge"
	"github.com/signalnine/pantheon/internal/llm"
	"github.com/signalnine/pantheon/internal/metrics"
	"github.com/signalnine/pantheon/internal/report"
	"github.com/signalnine/pantheon/internal/result"
	"github.com/signalnine/pantheon/internal/runner"
	"github.com/signalnine/pantheon/internal/store"
)

// fakeProvider serves an OpenAI-compatible chat completions endpoint.
// Candidate models get a markdown summary, judge models a rubric JSON.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		content := "# Zusammenfassung\n\nDie Photosynthese wandelt Lichtenergie in chemische Energie um."
		if strings.HasPrefix(req.Model, "judge/") {
			content = `{"factual_accuracy": 85, "completeness": 75, "quality": 90, "latex_correctness": 100, "reasoning": "inhaltlich korrekt"}`
		}

		resp := map[string]any{
			"id":    "cmpl-test",
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
			"usage": map[string]any{
				"prompt_tokens":     200,
				"completion_tokens": 100,
				"total_tokens":      300,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestBenchmarkPipeline(t *testing.T) {
	srv := fakeProvider(t)
	defer srv.Close()

	log := zap.NewNop().Sugar()
	cfg := &config.Config{
		Models: []config.Model{
			{ID: "vendor/candidate", Pricing: config.Pricing{InputPer1M: 1.0, OutputPer1M: 2.0}},
		},
		JudgeModels: []string{"judge/alpha", "judge/beta", "judge/gamma"},
		Tasks:       []string{config.TaskSummary},
	}
	config.ApplyDefaults(cfg)
	cfg.Provider.BaseURL = srv.URL + "/v1"

	client, err := llm.NewOpenRouterClient("test-key", cfg.Provider.BaseURL, llm.PolicyFromConfig(cfg.Retry), log)
	if err != nil {
		t.Fatalf("NewOpenRouterClient: %v", err)
	}

	resultsDir := t.TempDir()
	genCache, err := store.NewFSStore(resultsDir + "/" + result.CacheDir)
	if err != nil {
		t.Fatalf("gen cache: %v", err)
	}
	judgeCache, err := store.NewFSStore(resultsDir + "/" + result.JudgeCacheDir)
	if err != nil {
		t.Fatalf("judge cache: %v", err)
	}

	evaluator := judge.NewEvaluator(client, cfg, judgeCache, log)
	r := runner.New(client, evaluator, genCache, cfg, log)

	cases := []runner.TestCase{{
		ID:     "tc-1",
		Title:  "Photosynthese",
		Topic:  "biology",
		Format: "lecture_notes",
		Text:   "Die Photosynthese ist der zentrale Energieumwandlungsprozess der Pflanzen.",
	}}

	results, err := r.Run(context.Background(), cfg.Models, cfg.Tasks, cases)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	rec := results[0]
	if rec.Error != "" {
		t.Fatalf("record error: %s", rec.Error)
	}
	if rec.JudgeEvaluation == nil || rec.JudgeEvaluation.JudgeCount != 3 {
		t.Fatalf("expected 3-judge consensus, got %+v", rec.JudgeEvaluation)
	}
	// All judges answer identically, so the panel agrees perfectly.
	if rec.JudgeEvaluation.LowConfidence {
		t.Error("full panel should not be low confidence")
	}
	if rec.ContentQualityScore != 87.5 {
		t.Errorf("content quality = %v, want mean of rubric dims 87.5", rec.ContentQualityScore)
	}
	if rec.GenerationCost <= 0 || rec.JudgeCost != 0 {
		t.Errorf("costs: generation=%v judge=%v (judges have no pricing configured)", rec.GenerationCost, rec.JudgeCost)
	}

	// Persist, reload, and make sure metrics and report run over the corpus.
	if err := result.Save(resultsDir, results); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := result.Load(resultsDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Key() != rec.Key() {
		t.Fatalf("corpus did not round-trip: %+v", loaded)
	}

	cm := metrics.Comprehensive(loaded, cfg)
	if cm == nil || cm.Overall == nil {
		t.Fatal("expected comprehensive metrics")
	}
	comparative := metrics.Comparative(
		map[string]*metrics.ModelMetrics{"vendor/candidate": cm.Overall},
		map[string]*metrics.ComprehensiveMetrics{"vendor/candidate": cm},
		cfg,
	)
	if comparative.ModelCount != 1 {
		t.Errorf("model count = %d", comparative.ModelCount)
	}

	var buf bytes.Buffer
	if err := report.Generate(loaded, cfg, "table", &buf); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(buf.String(), "vendor/candidate") {
		t.Errorf("report missing model:\n%s", buf.String())
	}

	// A second run serves identical records from the generation cache.
	again, err := r.Run(context.Background(), cfg.Models, cfg.Tasks, cases)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again[0].ContentQualityScore != rec.ContentQualityScore {
		t.Error("cached rerun diverged from original record")
	}
}
