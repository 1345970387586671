// Package judge scores generated outputs through a panel of judge
// models and aggregates their verdicts into a consensus. Judges are
// independent: one judge failing does not sink the evaluation as long
// as at least one verdict comes back.
package judge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/signalnine/pantheon/internal/config"
	"github.com/signalnine/pantheon/internal/llm"
	"github.com/signalnine/pantheon/internal/store"
)

// Sources longer than this are folded into a hash for the cache key so
// keys stay cheap to compute on large lecture texts.
const sourceHashThreshold = 2048

// maxSourceExcerpt caps how much source text goes into a judge prompt.
const maxSourceExcerpt = 2000

// DimensionStats summarizes one scoring dimension across the panel.
type DimensionStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// Judgment is a single judge model's verdict.
type Judgment struct {
	ModelID     string             `json:"model_id"`
	Error       string             `json:"error,omitempty"`
	Scores      map[string]float64 `json:"scores"`
	Reasoning   string             `json:"reasoning,omitempty"`
	RawResponse string             `json:"raw_response,omitempty"`
	Cost        float64            `json:"cost"`
}

// Consensus is the aggregated result of a panel evaluation.
type Consensus struct {
	Error               string                    `json:"error,omitempty"`
	AggregatedScores    map[string]DimensionStats `json:"aggregated_scores"`
	IndividualJudgments []Judgment                `json:"individual_judgments"`
	ConsensusMetrics    map[string]float64        `json:"consensus_metrics"`
	JudgeCount          int                       `json:"judge_count"`
	AvailableModels     []string                  `json:"available_models"`
	TotalJudgeCost      float64                   `json:"total_judge_cost"`
	LowConfidence       bool                      `json:"low_confidence,omitempty"`
}

// Evaluator runs consensus evaluations against a fixed judge panel.
type Evaluator struct {
	Client        llm.Client
	Judges        []string
	Pricing       map[string]config.Pricing
	Cache         store.Store
	MinJudgeCount int
	Log           *zap.SugaredLogger
}

// NewEvaluator wires an evaluator from config. cache may be nil to
// disable caching.
func NewEvaluator(client llm.Client, cfg *config.Config, cache store.Store, log *zap.SugaredLogger) *Evaluator {
	pricing := make(map[string]config.Pricing)
	for _, m := range cfg.Models {
		pricing[m.ID] = m.Pricing
	}
	return &Evaluator{
		Client:        client,
		Judges:        cfg.JudgeModels,
		Pricing:       pricing,
		Cache:         cache,
		MinJudgeCount: cfg.Scoring.MinJudgeCount,
		Log:           log,
	}
}

// CacheKey derives the content-addressed key for a judgment. The same
// task, output, and source always map to the same key, so a cached
// verdict is an exact replay.
func CacheKey(taskType, outputText, sourceText string) string {
	out := normalize(outputText)
	src := normalize(sourceText)
	if len(src) > sourceHashThreshold {
		sum := sha256.Sum256([]byte(src))
		src = hex.EncodeToString(sum[:])
	}
	h := sha256.New()
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write([]byte(out))
	h.Write([]byte{0})
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

// normalize collapses whitespace runs to single spaces so formatting
// noise (reflowed lines, CRLF, trailing blanks) never misses the cache.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Evaluate runs the full panel over one output and aggregates the
// verdicts. A nil error with Consensus.Error set means the evaluation
// completed but produced no usable verdicts.
func (e *Evaluator) Evaluate(ctx context.Context, taskType, sourceText, outputText string, parsed map[string]any) (*Consensus, error) {
	if strings.TrimSpace(outputText) == "" {
		return emptyOutputConsensus(), nil
	}

	key := CacheKey(taskType, outputText, sourceText)
	if e.Cache != nil {
		if data, err := e.Cache.Get(key); err == nil {
			var cached Consensus
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
			e.Log.Warnw("discarding unreadable cached judgment", "key", key)
		}
	}

	if len(e.Judges) == 0 {
		return nil, fmt.Errorf("no judge models configured")
	}

	prompt, err := buildJudgePrompt(taskType, sourceText, outputText, parsed)
	if err != nil {
		return nil, err
	}

	judgments := make([]Judgment, len(e.Judges))
	var wg sync.WaitGroup
	for i, modelID := range e.Judges {
		wg.Add(1)
		go func(i int, modelID string) {
			defer wg.Done()
			judgments[i] = e.judgeOne(ctx, modelID, prompt)
		}(i, modelID)
	}
	wg.Wait()

	var valid []Judgment
	totalCost := 0.0
	for _, j := range judgments {
		totalCost += j.Cost
		if j.Error != "" {
			e.Log.Warnw("judge failed", "judge", j.ModelID, "error", j.Error)
			continue
		}
		valid = append(valid, j)
	}

	if len(valid) == 0 {
		return &Consensus{
			Error:            "All judge models failed",
			AggregatedScores: map[string]DimensionStats{},
			ConsensusMetrics: map[string]float64{},
			AvailableModels:  e.Judges,
			TotalJudgeCost:   totalCost,
		}, nil
	}

	result := &Consensus{
		AggregatedScores:    aggregate(valid),
		IndividualJudgments: valid,
		ConsensusMetrics:    consensusMetrics(valid),
		JudgeCount:          len(valid),
		AvailableModels:     e.Judges,
		TotalJudgeCost:      totalCost,
		LowConfidence:       len(valid) < e.MinJudgeCount,
	}

	if e.Cache != nil {
		data, err := json.Marshal(result)
		if err == nil {
			err = e.Cache.Put(key, data)
		}
		if err != nil {
			e.Log.Warnw("failed to cache judgment", "key", key, "error", err)
		}
	}
	return result, nil
}

// emptyOutputConsensus is the fixed verdict for empty output: floor
// scores on the core dimensions without spending any judge tokens.
func emptyOutputConsensus() *Consensus {
	floor := DimensionStats{Mean: 1, Median: 1, Min: 1, Max: 1, StdDev: 0, Count: 0}
	return &Consensus{
		Error: "Empty output",
		AggregatedScores: map[string]DimensionStats{
			"factual_accuracy": floor,
			"completeness":     floor,
			"quality":          floor,
		},
		IndividualJudgments: []Judgment{},
		ConsensusMetrics:    map[string]float64{},
		AvailableModels:     []string{},
	}
}

func (e *Evaluator) judgeOne(ctx context.Context, modelID, prompt string) Judgment {
	req := &llm.Request{
		ModelID:      modelID,
		SystemPrompt: judgeSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    500,
		Temperature:  0.1,
	}
	if p, ok := e.Pricing[modelID]; ok {
		req.Pricing = &p
	}

	resp, err := e.Client.Generate(ctx, req)
	if err != nil {
		return Judgment{ModelID: modelID, Error: err.Error(), Scores: map[string]float64{}}
	}
	if resp.Error != "" {
		return Judgment{ModelID: modelID, Error: resp.Error, Scores: map[string]float64{}, Cost: resp.Cost}
	}

	scores, reasoning, err := parseJudgeResponse(resp.Text)
	if err != nil {
		return Judgment{
			ModelID:     modelID,
			Error:       fmt.Sprintf("failed to parse judge response: %v", err),
			Scores:      map[string]float64{},
			RawResponse: resp.Text,
			Cost:        resp.Cost,
		}
	}
	return Judgment{ModelID: modelID, Scores: scores, Reasoning: reasoning, Cost: resp.Cost}
}

var judgeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseJudgeResponse extracts the score object from a judge reply.
// Scores are clamped to [1,100] as-is; judges are instructed to use the
// full 1-100 scale and low raw values are taken at face value.
func parseJudgeResponse(text string) (map[string]float64, string, error) {
	body := strings.TrimSpace(text)
	if m := judgeFenceRe.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, "", err
	}

	scores := make(map[string]float64)
	reasoning := ""
	for key, value := range raw {
		if key == "reasoning" {
			reasoning, _ = value.(string)
			continue
		}
		num, ok := value.(float64)
		if !ok {
			continue
		}
		if num < 1 {
			num = 1
		}
		if num > 100 {
			num = 100
		}
		scores[key] = num
	}
	if len(scores) == 0 {
		return nil, "", fmt.Errorf("no numeric scores in response")
	}
	return scores, reasoning, nil
}

// aggregate computes per-dimension stats across the valid verdicts.
// Dimensions only some judges returned are aggregated over whoever
// scored them.
func aggregate(judgments []Judgment) map[string]DimensionStats {
	byDim := make(map[string][]float64)
	for _, j := range judgments {
		for dim, score := range j.Scores {
			byDim[dim] = append(byDim[dim], score)
		}
	}

	out := make(map[string]DimensionStats, len(byDim))
	for dim, values := range byDim {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		out[dim] = DimensionStats{
			Mean:   mean(values),
			Median: sorted[len(sorted)/2],
			Min:    sorted[0],
			Max:    sorted[len(sorted)-1],
			StdDev: sampleStdDev(values),
			Count:  len(values),
		}
	}
	return out
}

// consensusMetrics reports per-dimension variance and an agreement
// score in (0,1] when at least two judges scored the dimension.
func consensusMetrics(judgments []Judgment) map[string]float64 {
	metrics := make(map[string]float64)
	if len(judgments) < 2 {
		return metrics
	}
	byDim := make(map[string][]float64)
	for _, j := range judgments {
		for dim, score := range j.Scores {
			byDim[dim] = append(byDim[dim], score)
		}
	}
	for dim, values := range byDim {
		if len(values) < 2 {
			continue
		}
		m := mean(values)
		variance := 0.0
		for _, v := range values {
			variance += (v - m) * (v - m)
		}
		variance /= float64(len(values))
		metrics[dim+"_variance"] = variance
		metrics[dim+"_agreement"] = 1.0 / (1.0 + variance)
	}
	return metrics
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
