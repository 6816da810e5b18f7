package ollama

import (
	"strings"
	"time"

	"modelgateway/internal/core"
)

// DefaultLargeModelFragments returns the name fragments that mark a model as large.
func DefaultLargeModelFragments() []string {
	return []string{"deepseek", "llama3-70b", "mixtral-8x7b", "qwen", "solar-10b"}
}

// Classifier assigns a tier to a model identifier by case-insensitive
// substring match against a fixed fragment set. It is immutable and safe
// for concurrent use.
type Classifier struct {
	fragments []string
}

// NewClassifier copies and lower-cases fragments. Blank fragments are dropped.
func NewClassifier(fragments []string) Classifier {
	normalized := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			normalized = append(normalized, f)
		}
	}
	return Classifier{fragments: normalized}
}

// DefaultClassifier uses DefaultLargeModelFragments.
func DefaultClassifier() Classifier {
	return NewClassifier(DefaultLargeModelFragments())
}

// IsLarge reports whether model contains any large-model fragment.
func (c Classifier) IsLarge(model string) bool {
	model = strings.ToLower(model)
	for _, f := range c.fragments {
		if strings.Contains(model, f) {
			return true
		}
	}
	return false
}

// Tier returns the tier of model.
func (c Classifier) Tier(model string) core.ModelTier {
	if c.IsLarge(model) {
		return core.TierLarge
	}
	return core.TierStandard
}

// Fragments returns a copy of the configured fragments.
func (c Classifier) Fragments() []string {
	return append([]string(nil), c.fragments...)
}

// TimeoutPolicy maps a tier to a request budget.
type TimeoutPolicy struct {
	Standard time.Duration
	Large    time.Duration
}

// DefaultTimeoutPolicy returns 180s for standard models and 1000s for large ones.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		Standard: 180 * time.Second,
		Large:    1000 * time.Second,
	}
}

// Budget returns the request budget for tier.
func (p TimeoutPolicy) Budget(tier core.ModelTier) time.Duration {
	if tier == core.TierLarge {
		return p.Large
	}
	return p.Standard
}
