package config

import (
	"os"
	"testing"
)

// TestExpandString tests the expandString function with various scenarios
func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "string without placeholders",
			input:    "simple-string",
			envVars:  map[string]string{},
			expected: "simple-string",
		},
		{
			name:     "simple variable expansion",
			input:    "${OLLAMA_HOST}",
			envVars:  map[string]string{"OLLAMA_HOST": "gpu-box"},
			expected: "gpu-box",
		},
		{
			name:     "multiple variables",
			input:    "${SCHEME}://${HOST}:${PORT}",
			envVars:  map[string]string{"SCHEME": "http", "HOST": "gpu-box", "PORT": "11434"},
			expected: "http://gpu-box:11434",
		},
		{
			name:     "variable with default value - env var exists",
			input:    "${OLLAMA_URL:-http://localhost:11434}",
			envVars:  map[string]string{"OLLAMA_URL": "http://gpu-box:11434"},
			expected: "http://gpu-box:11434",
		},
		{
			name:     "variable with default value - env var missing",
			input:    "${OLLAMA_URL:-http://localhost:11434}",
			envVars:  map[string]string{},
			expected: "http://localhost:11434",
		},
		{
			name:     "variable with default value - env var empty",
			input:    "${LEVEL:-info}",
			envVars:  map[string]string{"LEVEL": ""},
			expected: "info",
		},
		{
			name:     "unresolved variable - no default",
			input:    "${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "${MISSING_VAR}",
		},
		{
			name:     "mixed resolved and unresolved with defaults",
			input:    "${RESOLVED}:${UNRESOLVED:-fallback}:${MISSING}",
			envVars:  map[string]string{"RESOLVED": "value1"},
			expected: "value1:fallback:${MISSING}",
		},
		{
			name:     "environment variable set to empty string (no default)",
			input:    "${EMPTY_VAR}",
			envVars:  map[string]string{"EMPTY_VAR": ""},
			expected: "${EMPTY_VAR}",
		},
		{
			name:     "empty default value - env var missing",
			input:    "${OPTIONAL_VAR:-}",
			envVars:  map[string]string{},
			expected: "",
		},
		{
			name:     "placeholder inside yaml",
			input:    "timeouts:\n  large: ${LARGE:-1000}\n",
			envVars:  map[string]string{"LARGE": "20m"},
			expected: "timeouts:\n  large: 20m\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range []string{"OLLAMA_HOST", "SCHEME", "HOST", "PORT", "OLLAMA_URL", "LEVEL", "MISSING_VAR", "RESOLVED", "UNRESOLVED", "MISSING", "EMPTY_VAR", "OPTIONAL_VAR", "LARGE"} {
				t.Setenv(name, "")
				_ = os.Unsetenv(name)
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			result := expandString(tt.input)
			if result != tt.expected {
				t.Errorf("expandString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" deepseek, qwen ,,mixtral-8x7b ")
	want := []string{"deepseek", "qwen", "mixtral-8x7b"}
	if len(got) != len(want) {
		t.Fatalf("splitList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
