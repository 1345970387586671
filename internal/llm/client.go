// Package llm provides the generation capability: a chat-completion
// client with retry, usage accounting and cost tracking. Judges and
// candidate models go through the same interface.
package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/signalnine/pantheon/internal/config"
)

type Request struct {
	ModelID      string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
	Pricing      *config.Pricing
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the terminal outcome of a generation call. Error is set
// only after the retry budget is exhausted; cost and latency reflect
// whatever was actually incurred.
type Response struct {
	Text      string  `json:"text"`
	Usage     Usage   `json:"usage"`
	Cost      float64 `json:"cost"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// Client is the capability the evaluation core depends on. It must be
// safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Cost computes USD cost from token usage and per-1M pricing. Missing
// price components are treated as zero and logged, never fatal.
func Cost(log *zap.SugaredLogger, modelID string, promptTokens, completionTokens int, p *config.Pricing) float64 {
	if p == nil {
		return 0
	}
	inputPer1M := p.InputPer1M
	outputPer1M := p.OutputPer1M
	if inputPer1M == 0 || outputPer1M == 0 {
		if log != nil {
			log.Warnw("incomplete pricing for model",
				"model_id", modelID,
				"input_per_1m", inputPer1M,
				"output_per_1m", outputPer1M)
		}
	}
	return float64(promptTokens)/1_000_000*inputPer1M +
		float64(completionTokens)/1_000_000*outputPer1M
}
