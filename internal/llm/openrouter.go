package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenRouterClient talks to any OpenAI-compatible chat-completions
// endpoint (OpenRouter by default). One instance serves both
// generation and judging; it is safe for concurrent use.
type OpenRouterClient struct {
	api    *openai.Client
	policy RetryPolicy
	log    *zap.SugaredLogger
}

func NewOpenRouterClient(apiKey, baseURL string, policy RetryPolicy, log *zap.SugaredLogger) (*OpenRouterClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("provider API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenRouterClient{
		api:    openai.NewClientWithConfig(cfg),
		policy: policy,
		log:    log,
	}, nil
}

// Generate runs one chat completion with bounded retry on transient
// failures. The returned Response always carries latency; Error is set
// only when the retry budget is exhausted.
func (c *OpenRouterClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	type genResult struct {
		text  string
		usage Usage
	}
	res, err := retryCall(ctx, c.policy, func() (genResult, error) {
		var out genResult
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: req.ModelID,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
			},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return out, classifyAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return out, Transient(fmt.Errorf("no choices in response"))
		}
		out.text = resp.Choices[0].Message.Content
		out.usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		// Some providers return empty content with non-zero completion
		// usage; treat as retryable.
		if strings.TrimSpace(out.text) == "" && out.usage.CompletionTokens > 0 {
			return out, Transient(fmt.Errorf("empty content with %d completion tokens", out.usage.CompletionTokens))
		}
		return out, nil
	})

	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		c.log.Warnw("generation failed", "model_id", req.ModelID, "error", err)
		return &Response{
			LatencyMS: latency,
			Error:     err.Error(),
		}, nil
	}

	return &Response{
		Text:      extractText(res.text),
		Usage:     res.usage,
		Cost:      Cost(c.log, req.ModelID, res.usage.PromptTokens, res.usage.CompletionTokens, req.Pricing),
		LatencyMS: latency,
	}, nil
}

// classifyAPIError separates transient provider failures (rate limit,
// 5xx, network) from permanent ones.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return Transient(err)
		}
		return err
	}
	// Connection-level failures have no status code.
	return Transient(err)
}

// extractText trims the assistant text; providers occasionally pad
// content with leading newlines.
func extractText(s string) string {
	return strings.TrimSpace(s)
}

// CheckAvailability issues a minimal completion per model in parallel
// and reports which models answered.
func (c *OpenRouterClient) CheckAvailability(ctx context.Context, modelIDs []string) map[string]bool {
	type check struct {
		id string
		ok bool
	}
	ch := make(chan check, len(modelIDs))
	for _, id := range modelIDs {
		go func(id string) {
			_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:     id,
				Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "test"}},
				MaxTokens: 5,
			})
			if err != nil {
				c.log.Warnw("model unavailable", "model_id", id, "error", err)
			}
			ch <- check{id: id, ok: err == nil}
		}(id)
	}
	out := make(map[string]bool, len(modelIDs))
	for range modelIDs {
		r := <-ch
		out[r.id] = r.ok
	}
	return out
}
