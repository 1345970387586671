package pricing

import (
	"github.com/signalnine/pantheon/internal/config"
)

// Tier buckets models by input price (USD per 1M tokens). Tiers drive
// adaptive token budgets and input-size caps.
const (
	TierFree    = "free"
	TierBudget  = "budget"
	TierMidTier = "mid_tier"
	TierPremium = "premium"
)

// TierFor classifies a model's pricing into a tier.
func TierFor(p config.Pricing) string {
	switch {
	case p.InputPer1M == 0:
		return TierFree
	case p.InputPer1M < 1:
		return TierBudget
	case p.InputPer1M < 5:
		return TierMidTier
	default:
		return TierPremium
	}
}

// AdaptiveLimits returns the max-token budget and input character cap
// for a pricing tier. Unknown tiers fall back to the defaults.
func AdaptiveLimits(cfg *config.Config, tier string, defaultMaxTokens int) (maxTokens, maxInputChars int) {
	multiplier := 1.0
	if m, ok := cfg.TokenLimitMultipliers[tier]; ok {
		multiplier = m
	}
	maxTokens = int(float64(defaultMaxTokens) * multiplier)

	maxInputChars = 2000
	if c, ok := cfg.AdaptiveInputSizing[tier]; ok {
		maxInputChars = c
	}
	return maxTokens, maxInputChars
}
