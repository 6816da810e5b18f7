package ollama

import (
	"testing"
	"time"

	"modelgateway/internal/core"
)

func TestClassifier_IsLarge(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		model string
		want  bool
	}{
		{"deepseek-coder", true},
		{"DeepSeek-R1:14b", true},
		{"qwen2.5:7b", true},
		{"mixtral-8x7b-instruct", true},
		{"llama3-70b", true},
		{"solar-10b", true},
		{"phi3-mini", false},
		{"llama3:8b", false},
		{"mistral", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := c.IsLarge(tt.model); got != tt.want {
				t.Errorf("IsLarge(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestClassifier_Injected(t *testing.T) {
	c := NewClassifier([]string{" Phi3 ", ""})

	if !c.IsLarge("phi3-mini") {
		t.Error("custom fragment should classify phi3-mini as large")
	}
	if c.IsLarge("deepseek-coder") {
		t.Error("default fragments must not leak into a custom classifier")
	}
	if got := c.Fragments(); len(got) != 1 || got[0] != "phi3" {
		t.Errorf("Fragments() = %v, want [phi3]", got)
	}
}

func TestClassifier_Immutable(t *testing.T) {
	fragments := []string{"gemma"}
	c := NewClassifier(fragments)
	fragments[0] = "mistral"

	if !c.IsLarge("gemma:7b") {
		t.Error("classifier should not observe changes to its input slice")
	}

	returned := c.Fragments()
	returned[0] = "phi3"
	if c.IsLarge("phi3") {
		t.Error("classifier should not observe changes to Fragments() result")
	}
}

func TestClassifier_Tier(t *testing.T) {
	c := DefaultClassifier()

	if got := c.Tier("deepseek-coder"); got != core.TierLarge {
		t.Errorf("Tier = %q, want %q", got, core.TierLarge)
	}
	if got := c.Tier("phi3-mini"); got != core.TierStandard {
		t.Errorf("Tier = %q, want %q", got, core.TierStandard)
	}
}

func TestTimeoutPolicy_Budget(t *testing.T) {
	p := DefaultTimeoutPolicy()

	if got := p.Budget(core.TierLarge); got != 1000*time.Second {
		t.Errorf("large budget = %v, want 1000s", got)
	}
	if got := p.Budget(core.TierStandard); got != 180*time.Second {
		t.Errorf("standard budget = %v, want 180s", got)
	}
}

func TestClient_RequestBudget(t *testing.T) {
	client := New(Config{})

	if got := client.RequestBudget("deepseek-coder:6.7b"); got != 1000*time.Second {
		t.Errorf("RequestBudget(large) = %v, want 1000s", got)
	}
	if got := client.RequestBudget("phi3-mini"); got != 180*time.Second {
		t.Errorf("RequestBudget(standard) = %v, want 180s", got)
	}

	custom := New(Config{
		Timeouts: TimeoutPolicy{Standard: time.Minute, Large: time.Hour},
	})
	if got := custom.RequestBudget("qwen"); got != time.Hour {
		t.Errorf("RequestBudget(custom large) = %v, want 1h", got)
	}
}
