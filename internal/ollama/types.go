package ollama

import "modelgateway/internal/core"

type versionResponse struct {
	Version string `json:"version"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type generateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options any    `json:"options,omitempty"`
}

// generateResponse keeps Response as a pointer to tell a missing field from an empty one.
type generateResponse struct {
	Response *string `json:"response"`
}

type probeOptions struct {
	NumPredict int `json:"num_predict"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  core.GenerationOptions `json:"options"`
}

func toChatMessages(messages []core.ChatMessage) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: string(m.Role.Normalize()), Content: m.Content}
	}
	return out
}
