package ollama

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"modelgateway/internal/core"
	"modelgateway/internal/llmclient"
)

// ListModels returns the models the server knows about, in upstream order.
// Failures never surface as errors: each is reported as a single sentinel
// entry so the result is always displayable. Results are never cached.
func (c *Client) ListModels(ctx context.Context) []core.CatalogEntry {
	log := c.log(ctx)

	if !c.CheckConnection(ctx) {
		return sentinel(core.SentinelNotRunning, "Ollama is not running. Start it with: ollama serve")
	}

	ctx, cancel := context.WithTimeout(ctx, c.catalogTimeout)
	defer cancel()

	var resp tagsResponse
	err := c.client.Do(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/api/tags",
	}, &resp)
	if err != nil {
		log.Error("error fetching models from ollama", "error", err)
		return catalogFailure(err)
	}

	if len(resp.Models) == 0 {
		log.Warn("no models available")
		return sentinel(core.SentinelNoModels, "No models found. Pull one with: ollama pull <model>")
	}

	log.Info("models found", "count", len(resp.Models))

	entries := make([]core.CatalogEntry, 0, len(resp.Models))
	for _, m := range resp.Models {
		entries = append(entries, core.CatalogEntry{
			ID:          m.Name,
			DisplayName: DisplayName(m.Name),
		})
	}
	return entries
}

func sentinel(id, displayName string) []core.CatalogEntry {
	return []core.CatalogEntry{{ID: id, DisplayName: displayName}}
}

func catalogFailure(err error) []core.CatalogEntry {
	gwErr := llmclient.ClassifyTransportError(err)

	switch gwErr.Kind {
	case core.ErrorKindMalformedResponse:
		return sentinel(core.SentinelParseError, "Failed to parse model list from Ollama")
	case core.ErrorKindConnection, core.ErrorKindTimeout:
		return sentinel(core.SentinelConnectionError, "Cannot reach Ollama to list models")
	default:
		return sentinel(core.SentinelHTTPError, fmt.Sprintf("Failed to fetch models from Ollama (HTTP %d)", gwErr.HTTPStatusCode()))
	}
}

type labelHint struct {
	match string
	label string
}

type familyRule struct {
	match string
	label string
	hints []labelHint
	// withSize appends the parameter size found in the tag, e.g. "6.7B"
	withSize bool
}

// familyRules are checked in order; the first family contained in the name wins,
// and within a family the first matching hint is used.
var familyRules = []familyRule{
	{match: "phi3", label: "Phi-3", hints: []labelHint{{"mini", "Mini"}, {"medium", "Medium"}}},
	{match: "llama3", label: "Llama 3", hints: []labelHint{{"8b", "8B"}, {"70b", "70B"}}},
	{match: "llama2", label: "Llama 2", hints: []labelHint{{"7b", "7B"}, {"13b", "13B"}, {"70b", "70B"}}},
	{match: "gemma", label: "Gemma", hints: []labelHint{{"2b", "2B"}, {"7b", "7B"}}},
	{match: "mistral", label: "Mistral", hints: []labelHint{{"7b", "7B"}}},
	{match: "deepseek", label: "DeepSeek", hints: []labelHint{{"coder", "Coder"}, {"r1", "R1"}}, withSize: true},
}

var paramSizePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)b\b`)

// DisplayName maps a raw model identifier to a human-friendly label.
// Unknown identifiers are returned unchanged.
func DisplayName(id string) string {
	name := strings.ToLower(id)

	for _, rule := range familyRules {
		if !strings.Contains(name, rule.match) {
			continue
		}

		parts := []string{rule.label}
		for _, h := range rule.hints {
			if strings.Contains(name, h.match) {
				parts = append(parts, h.label)
				break
			}
		}
		if rule.withSize {
			if size := parameterSize(name); size != "" {
				parts = append(parts, size)
			}
		}
		return strings.Join(parts, " ")
	}

	return id
}

// parameterSize extracts the size from the tag part of a name ("deepseek-coder:6.7b" -> "6.7B").
func parameterSize(name string) string {
	_, tag, found := strings.Cut(name, ":")
	if !found {
		return ""
	}
	m := paramSizePattern.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return m[1] + "B"
}
