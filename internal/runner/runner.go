// Package runner drives the benchmark: it fans out every
// model+task+test case combination over a bounded worker pool,
// generates outputs, and pushes them through the reliability and judge
// evaluators into benchmark records.
package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/judge"
	"github.com/signalnine/pantheon/internal/llm"
	"github.com/signalnine/pantheon/internal/pricing"
	"github.com/signalnine/pantheon/internal/reliability"
	"github.com/signalnine/pantheon/internal/result"
	"github.com/signalnine/pantheon/internal/store"
)

const progressInterval = 10

// Runner executes benchmark runs.
type Runner struct {
	Client llm.Client
	Judge  *judge.Evaluator
	Cache  store.Store
	Cfg    *config.Config
	Log    *zap.SugaredLogger
}

// New wires a runner. cache may be nil to disable result caching.
func New(client llm.Client, evaluator *judge.Evaluator, cache store.Store, cfg *config.Config, log *zap.SugaredLogger) *Runner {
	return &Runner{Client: client, Judge: evaluator, Cache: cache, Cfg: cfg, Log: log}
}

// CacheKey identifies a generation run by model, task, and test case.
// Only a prefix of the source text feeds the hash; test case ids are
// stable and the prefix guards against silent content edits.
func CacheKey(modelID, task string, tc *TestCase) string {
	text := tc.Text
	if len(text) > 500 {
		text = text[:500]
	}
	sum := sha256.Sum256([]byte(modelID + ":" + task + ":" + tc.ID + ":" + text))
	return hex.EncodeToString(sum[:])
}

// Run executes every model+task+test case combination with bounded
// concurrency and returns all records. Individual run failures become
// error records; infrastructure failures accumulate into the returned
// error.
func (r *Runner) Run(ctx context.Context, models []config.Model, tasks []string, cases []TestCase) ([]result.BenchmarkResult, error) {
	type job struct {
		model config.Model
		task  string
		tc    TestCase
	}
	var jobs []job
	for _, model := range models {
		for _, task := range tasks {
			for _, tc := range cases {
				jobs = append(jobs, job{model, task, tc})
			}
		}
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	r.Log.Infow("starting benchmark run",
		"jobs", len(jobs), "models", len(models), "tasks", len(tasks),
		"concurrency", r.Cfg.ConcurrencyLimit)

	pool, err := ants.NewPool(r.Cfg.ConcurrencyLimit)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result.BenchmarkResult
		errs    *multierror.Error
		done    int
	)
	for _, j := range jobs {
		j := j
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			rec := r.runOne(ctx, j.model, j.task, &j.tc)
			mu.Lock()
			results = append(results, rec)
			if rec.Error != "" {
				errs = multierror.Append(errs, fmt.Errorf("%s/%s/%s: %s", j.model.ID, j.task, j.tc.ID, rec.Error))
			}
			done++
			if done%progressInterval == 0 {
				r.Log.Infow("progress", "completed", done, "total", len(jobs))
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = multierror.Append(errs, fmt.Errorf("submitting %s/%s/%s: %w", j.model.ID, j.task, j.tc.ID, submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	r.Log.Infow("benchmark run complete", "results", len(results))
	return results, errs.ErrorOrNil()
}

func (r *Runner) runOne(ctx context.Context, model config.Model, task string, tc *TestCase) result.BenchmarkResult {
	key := CacheKey(model.ID, task, tc)
	if r.Cache != nil {
		if data, err := r.Cache.Get(key); err == nil {
			var cached result.BenchmarkResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
			r.Log.Warnw("discarding unreadable cached result", "key", key)
		}
	}

	tier := pricing.TierFor(model.Pricing)
	_, maxInputChars := pricing.AdaptiveLimits(r.Cfg, tier, 0)
	text := tc.Text
	if len(text) > maxInputChars {
		text = text[:maxInputChars] + "..."
	}

	prompts, err := BuildPrompts(task, tc, text)
	if err != nil {
		return errorRecord(model.ID, task, tc, err.Error(), 0)
	}
	maxTokens, _ := pricing.AdaptiveLimits(r.Cfg, tier, prompts.MaxTokens)

	resp, err := r.Client.Generate(ctx, &llm.Request{
		ModelID:      model.ID,
		SystemPrompt: prompts.System,
		UserPrompt:   prompts.User,
		MaxTokens:    maxTokens,
		Temperature:  0.2,
		Pricing:      &model.Pricing,
	})
	if err != nil {
		return errorRecord(model.ID, task, tc, err.Error(), 0)
	}
	if resp.Error != "" {
		return errorRecord(model.ID, task, tc, resp.Error, resp.LatencyMS)
	}

	outputText := resp.Text
	var parsed map[string]any
	if task == config.TaskQuiz || task == config.TaskFlashcards {
		parsed, _ = reliability.ParseStructured(outputText)
	}

	rel := reliability.Evaluate(task, outputText, parsed)

	consensus, err := r.Judge.Evaluate(ctx, task, tc.Text, outputText, parsed)
	if err != nil {
		r.Log.Warnw("judge evaluation failed", "model", model.ID, "task", task, "case", tc.ID, "error", err)
		consensus = &judge.Consensus{Error: err.Error()}
	}

	judgeCost := consensus.TotalJudgeCost
	rec := result.BenchmarkResult{
		ModelID:             model.ID,
		Task:                task,
		TestCaseID:          tc.ID,
		TestCaseTopic:       tc.Topic,
		TestCaseFormat:      tc.Format,
		OutputText:          truncate(outputText, result.OutputTextLimit),
		ReliabilityScore:    rel.Score,
		ReliabilityIssues:   rel.Issues,
		ContentQualityScore: contentQualityScore(consensus),
		JudgeEvaluation:     consensus,
		Cost:                resp.Cost + judgeCost,
		GenerationCost:      resp.Cost,
		JudgeCost:           judgeCost,
		LatencyMS:           resp.LatencyMS,
		Usage:               &resp.Usage,
		PricingTier:         tier,
	}

	if r.Cache != nil {
		data, err := json.Marshal(&rec)
		if err == nil {
			err = r.Cache.Put(key, data)
		}
		if err != nil {
			r.Log.Warnw("failed to cache result", "key", key, "error", err)
		}
	}
	return rec
}

// contentQualityScore is the mean of the judge's aggregated dimension
// means, floored at 1 per dimension and overall.
func contentQualityScore(c *judge.Consensus) float64 {
	if c == nil || len(c.AggregatedScores) == 0 {
		return 1.0
	}
	sum := 0.0
	n := 0
	for _, s := range c.AggregatedScores {
		v := s.Mean
		if v < 1 {
			v = 1
		}
		sum += v
		n++
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

func errorRecord(modelID, task string, tc *TestCase, msg string, latencyMS float64) result.BenchmarkResult {
	return result.BenchmarkResult{
		ModelID:        modelID,
		Task:           task,
		TestCaseID:     tc.ID,
		TestCaseTopic:  tc.Topic,
		TestCaseFormat: tc.Format,
		Error:          msg,
		LatencyMS:      latencyMS,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
