package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Task names understood by the evaluators.
const (
	TaskSummary    = "summary"
	TaskQuiz       = "quiz"
	TaskFlashcards = "flashcards"
)

func KnownTasks() []string {
	return []string{TaskSummary, TaskQuiz, TaskFlashcards}
}

// Judge quality filter modes. Strict mode drops low-confidence
// consensus samples from quality aggregation.
const (
	FilterDefault = "default"
	FilterStrict  = "strict"
)

type Config struct {
	Models      []Model  `yaml:"models"`
	JudgeModels []string `yaml:"judge_models"`
	Tasks       []string `yaml:"tasks"`

	ConcurrencyLimit int `yaml:"concurrency_limit"`

	Retry   Retry   `yaml:"retry"`
	Scoring Scoring `yaml:"scoring"`
	Ranking Ranking `yaml:"ranking"`

	// Adaptive sizing keyed by pricing tier (free/budget/mid_tier/premium).
	TokenLimitMultipliers map[string]float64 `yaml:"token_limit_multipliers"`
	AdaptiveInputSizing   map[string]int     `yaml:"adaptive_input_sizing"`

	Provider Provider `yaml:"provider"`
	Results  Results  `yaml:"results"`
}

type Model struct {
	ID      string  `yaml:"id"`
	Pricing Pricing `yaml:"pricing"`
}

// Pricing is USD per million tokens. Zero values mean "unknown" and
// cost out to 0.
type Pricing struct {
	InputPer1M  float64 `yaml:"input_per_1m"`
	OutputPer1M float64 `yaml:"output_per_1m"`
}

type Retry struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms"`
}

type Scoring struct {
	ReliabilityWeight float64 `yaml:"reliability_weight"`
	QualityWeight     float64 `yaml:"quality_weight"`

	// JudgeQualityFilter controls whether low-confidence consensus
	// results feed the quality series: "default" keeps them,
	// "strict" excludes them.
	JudgeQualityFilter string `yaml:"judge_quality_filter"`
	MinJudgeCount      int    `yaml:"min_judge_count"`
}

type Ranking struct {
	// MinResultsPerTask gates eligibility for cross-task "overall"
	// rankings. Models below the minimum on any listed task only
	// appear in per-task breakdowns.
	MinResultsPerTask map[string]int `yaml:"min_results_per_task"`
}

type Provider struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	ApplyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func ApplyDefaults(cfg *Config) {
	if len(cfg.Tasks) == 0 {
		cfg.Tasks = KnownTasks()
	}
	if cfg.ConcurrencyLimit == 0 {
		cfg.ConcurrencyLimit = 4
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoffMS == 0 {
		cfg.Retry.InitialBackoffMS = 500
	}
	if cfg.Retry.MaxBackoffMS == 0 {
		cfg.Retry.MaxBackoffMS = 8000
	}
	if cfg.Scoring.ReliabilityWeight == 0 && cfg.Scoring.QualityWeight == 0 {
		cfg.Scoring.ReliabilityWeight = 0.3
		cfg.Scoring.QualityWeight = 0.7
	}
	if cfg.Scoring.JudgeQualityFilter == "" {
		cfg.Scoring.JudgeQualityFilter = FilterDefault
	}
	if cfg.Scoring.MinJudgeCount == 0 {
		cfg.Scoring.MinJudgeCount = 3
	}
	if cfg.Ranking.MinResultsPerTask == nil {
		cfg.Ranking.MinResultsPerTask = map[string]int{}
		for _, t := range KnownTasks() {
			cfg.Ranking.MinResultsPerTask[t] = 1
		}
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Models) == 0 {
		return fmt.Errorf("no models defined")
	}
	for i, m := range cfg.Models {
		if m.ID == "" {
			return fmt.Errorf("model %d: id is required", i)
		}
	}
	if len(cfg.JudgeModels) == 0 {
		return fmt.Errorf("no judge_models defined")
	}
	known := map[string]bool{}
	for _, t := range KnownTasks() {
		known[t] = true
	}
	for _, t := range cfg.Tasks {
		if !known[t] {
			return fmt.Errorf("unknown task %q", t)
		}
	}
	if cfg.ConcurrencyLimit < 1 {
		return fmt.Errorf("concurrency_limit must be at least 1")
	}
	w := cfg.Scoring.ReliabilityWeight + cfg.Scoring.QualityWeight
	if math.Abs(w-1.0) > 1e-9 {
		return fmt.Errorf("reliability_weight + quality_weight must sum to 1.0, got %v", w)
	}
	if cfg.Scoring.ReliabilityWeight < 0 || cfg.Scoring.QualityWeight < 0 {
		return fmt.Errorf("score weights must be non-negative")
	}
	switch cfg.Scoring.JudgeQualityFilter {
	case FilterDefault, FilterStrict:
	default:
		return fmt.Errorf("judge_quality_filter must be \"default\" or \"strict\", got %q", cfg.Scoring.JudgeQualityFilter)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	return nil
}

// ModelsByID returns a lookup over the configured models.
func (c *Config) ModelsByID() map[string]Model {
	out := make(map[string]Model, len(c.Models))
	for _, m := range c.Models {
		out[m.ID] = m
	}
	return out
}
