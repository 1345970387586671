package runner

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/judge"
	"github.com/signalnine/pantheon/internal/llm"
	"github.com/signalnine/pantheon/internal/store"
)

// fakeClient answers by model id and records every request it sees.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]*llm.Response
	errs      map[string]error
	requests  []*llm.Request
}

func (f *fakeClient) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.ModelID]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.ModelID]; ok {
		return resp, nil
	}
	return &llm.Response{Text: "ok"}, nil
}

func (f *fakeClient) callsTo(modelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if req.ModelID == modelID {
			n++
		}
	}
	return n
}

const summaryOutput = "# Photosynthese\n\nPflanzen wandeln Licht in chemische Energie um."

func newFixture(t *testing.T) (*Runner, *fakeClient) {
	t.Helper()
	fc := &fakeClient{
		responses: map[string]*llm.Response{
			"cand/a": {
				Text:      summaryOutput,
				Usage:     llm.Usage{PromptTokens: 100, CompletionTokens: 50},
				Cost:      0.01,
				LatencyMS: 120,
			},
			"judge/x": {
				Text: `{"factual_accuracy": 80, "completeness": 70, "quality": 90, "latex_correctness": 100, "reasoning": "solide"}`,
				Cost: 0.002,
			},
		},
		errs: map[string]error{},
	}
	log := zap.NewNop().Sugar()
	cfg := &config.Config{
		ConcurrencyLimit:    2,
		AdaptiveInputSizing: map[string]int{"free": 100000, "premium": 100000},
	}
	ev := &judge.Evaluator{
		Client:        fc,
		Judges:        []string{"judge/x"},
		MinJudgeCount: 1,
		Log:           log,
	}
	return New(fc, ev, nil, cfg, log), fc
}

func testCases() []TestCase {
	return []TestCase{{
		ID:     "tc-1",
		Title:  "Photosynthese",
		Topic:  "biology",
		Format: "lecture_notes",
		Text:   "Die Photosynthese ist der Prozess, mit dem Pflanzen Lichtenergie nutzen.",
	}}
}

func TestRunProducesCompleteRecord(t *testing.T) {
	r, _ := newFixture(t)
	models := []config.Model{{ID: "cand/a"}}

	results, err := r.Run(context.Background(), models, []string{config.TaskSummary}, testCases())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	rec := results[0]
	if rec.ModelID != "cand/a" || rec.Task != config.TaskSummary || rec.TestCaseID != "tc-1" {
		t.Errorf("wrong identity: %+v", rec)
	}
	if rec.Error != "" {
		t.Fatalf("unexpected error in record: %s", rec.Error)
	}
	if rec.ReliabilityScore < 90 {
		t.Errorf("clean markdown summary should score high, got %v (%v)", rec.ReliabilityScore, rec.ReliabilityIssues)
	}
	// Mean of the four judged dimensions: (80+70+90+100)/4.
	if rec.ContentQualityScore != 85 {
		t.Errorf("content quality = %v, want 85", rec.ContentQualityScore)
	}
	if rec.GenerationCost != 0.01 {
		t.Errorf("generation cost = %v", rec.GenerationCost)
	}
	if rec.JudgeCost != 0.002 {
		t.Errorf("judge cost = %v", rec.JudgeCost)
	}
	if rec.Cost != rec.GenerationCost+rec.JudgeCost {
		t.Errorf("total cost %v != %v + %v", rec.Cost, rec.GenerationCost, rec.JudgeCost)
	}
	if rec.PricingTier != "free" {
		t.Errorf("tier = %q, want free for zero pricing", rec.PricingTier)
	}
	if rec.Usage == nil || rec.Usage.PromptTokens != 100 {
		t.Errorf("usage not propagated: %+v", rec.Usage)
	}
}

func TestRunCachesResults(t *testing.T) {
	r, fc := newFixture(t)
	r.Cache = store.NewMemStore()
	models := []config.Model{{ID: "cand/a"}}
	tasks := []string{config.TaskSummary}

	if _, err := r.Run(context.Background(), models, tasks, testCases()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := fc.callsTo("cand/a")
	if calls != 1 {
		t.Fatalf("expected 1 generation call, got %d", calls)
	}

	results, err := r.Run(context.Background(), models, tasks, testCases())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if fc.callsTo("cand/a") != calls {
		t.Errorf("cached run still hit the client: %d calls", fc.callsTo("cand/a"))
	}
	if len(results) != 1 || results[0].ContentQualityScore != 85 {
		t.Errorf("cached record not replayed: %+v", results)
	}
}

func TestRunRecordsGenerationFailure(t *testing.T) {
	r, fc := newFixture(t)
	fc.errs["cand/broken"] = context.DeadlineExceeded
	models := []config.Model{{ID: "cand/broken"}}

	results, err := r.Run(context.Background(), models, []string{config.TaskSummary}, testCases())
	if err == nil {
		t.Fatal("expected aggregate error for failed generation")
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Error == "" {
		t.Error("failure should produce an error record")
	}
	if results[0].ContentQualityScore != 0 {
		t.Errorf("failed run should not carry quality, got %v", results[0].ContentQualityScore)
	}
}

func TestRunTruncatesOversizedInput(t *testing.T) {
	r, fc := newFixture(t)
	r.Cfg.AdaptiveInputSizing = map[string]int{"free": 40}
	cases := testCases()
	cases[0].Text = strings.Repeat("Lange Vorlesungsnotizen. ", 20)

	if _, err := r.Run(context.Background(), []config.Model{{ID: "cand/a"}}, []string{config.TaskSummary}, cases); err != nil {
		t.Fatalf("Run: %v", err)
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var genReq *llm.Request
	for _, req := range fc.requests {
		if req.ModelID == "cand/a" {
			genReq = req
		}
	}
	if genReq == nil {
		t.Fatal("no generation request captured")
	}
	if !strings.Contains(genReq.UserPrompt, cases[0].Text[:40]+"...") {
		t.Error("prompt should contain the truncated text with ellipsis")
	}
	if strings.Contains(genReq.UserPrompt, cases[0].Text) {
		t.Error("prompt should not contain the full oversized text")
	}
}

func TestCacheKeyStability(t *testing.T) {
	tc := &TestCase{ID: "tc-1", Text: strings.Repeat("a", 600)}
	base := CacheKey("m", "summary", tc)

	// Edits past the hashed prefix do not change the key.
	tail := &TestCase{ID: "tc-1", Text: strings.Repeat("a", 500) + "different tail"}
	if CacheKey("m", "summary", tail) != base {
		t.Error("edits beyond the hashed prefix should not change the key")
	}

	head := &TestCase{ID: "tc-1", Text: "b" + strings.Repeat("a", 599)}
	if CacheKey("m", "summary", head) == base {
		t.Error("edits inside the hashed prefix must change the key")
	}
	if CacheKey("m", "quiz", tc) == base {
		t.Error("task must be part of the key")
	}
	if CacheKey("other", "summary", tc) == base {
		t.Error("model must be part of the key")
	}
}
