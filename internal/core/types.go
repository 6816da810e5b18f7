package core

import "strings"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Normalize lower-cases the role so "User" and "user" compare equal.
func (r Role) Normalize() Role {
	return Role(strings.ToLower(strings.TrimSpace(string(r))))
}

// ChatMessage is one entry of a conversation, oldest first.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelTier drives timeout selection. It is derived from the model name, never stored.
type ModelTier string

const (
	TierStandard ModelTier = "standard"
	TierLarge    ModelTier = "large"
)

// GatewayRequest is a single call into the gateway.
type GatewayRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	// Streaming selects /api/chat streaming; false uses a single /api/generate call.
	Streaming bool `json:"streaming"`
}

// Sentinel catalog IDs. They report catalog-level failures without raising
// and never collide with a real model name.
const (
	SentinelNotRunning      = "ollama-not-running"
	SentinelHTTPError       = "error-http"
	SentinelParseError      = "error-parse"
	SentinelConnectionError = "error-connection"
	SentinelNoModels        = "no-models"
)

// CatalogEntry is a model known to the inference server.
type CatalogEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

// IsSentinel reports whether the entry is a synthetic failure marker.
func (e CatalogEntry) IsSentinel() bool {
	switch e.ID {
	case SentinelNotRunning, SentinelHTTPError, SentinelParseError, SentinelConnectionError, SentinelNoModels:
		return true
	}
	return false
}

// GenerationOptions are the sampling options sent with every completion request.
type GenerationOptions struct {
	NumCtx      int     `json:"num_ctx,omitempty"`
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k,omitempty"`
}

// DefaultGenerationOptions returns the options used when none are configured.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		NumCtx:      8192,
		Temperature: 0.7,
		TopK:        50,
	}
}
