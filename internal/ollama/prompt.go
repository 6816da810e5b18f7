package ollama

import (
	"strings"

	"modelgateway/internal/core"
)

// assistantCue invites the model to answer when the user spoke last.
const assistantCue = "[ASSISTANT]: "

// FormatPrompt flattens a conversation into a single /api/generate prompt.
// Each message becomes a role-tagged block separated by a blank line and the
// result is trimmed. When the user spoke last, the assistant cue is appended
// after trimming so its trailing space survives.
func FormatPrompt(messages []core.ChatMessage) string {
	var b strings.Builder

	for _, msg := range messages {
		switch msg.Role.Normalize() {
		case core.RoleSystem:
			b.WriteString("[SYSTEM]: ")
		case core.RoleUser:
			b.WriteString("[USER]: ")
		case core.RoleAssistant:
			b.WriteString("[ASSISTANT]: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	prompt := strings.TrimSpace(b.String())
	if len(messages) > 0 && messages[len(messages)-1].Role.Normalize() == core.RoleUser {
		prompt += "\n\n" + assistantCue
	}
	return prompt
}
