package ollama

import (
	"context"
	"net/http"

	"modelgateway/internal/llmclient"
)

// probePrompt is the minimal prompt sent by the availability fallback probe.
const probePrompt = "Hello"

// IsModelAvailable reports whether model can be used. The catalog is checked
// first; on a miss a one-token generation is attempted, since the catalog can
// lag behind the server. Every failure is logged and reduced to false.
func (c *Client) IsModelAvailable(ctx context.Context, model string) bool {
	for _, entry := range c.ListModels(ctx) {
		if !entry.IsSentinel() && entry.ID == model {
			return true
		}
	}

	c.log(ctx).Info("model not in catalog, probing directly", "model", model)
	return c.probeModel(ctx, model)
}

func (c *Client) probeModel(ctx context.Context, model string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.availabilityProbeTimeout)
	defer cancel()

	_, err := c.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/api/generate",
		Model:    model,
		Body: generateRequest{
			Model:   model,
			Prompt:  probePrompt,
			Stream:  false,
			Options: probeOptions{NumPredict: 1},
		},
	})
	if err != nil {
		c.log(ctx).Info("direct model probe failed", "model", model, "error", err)
		return false
	}
	return true
}
