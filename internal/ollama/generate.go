package ollama

import (
	"context"
	"net/http"
	"time"

	"modelgateway/internal/core"
	"modelgateway/internal/llmclient"
)

// Generate sends a single non-streaming /api/generate request and returns
// the response text. The timeout budget follows the model tier. Exactly one
// request is made; failures come back as *core.GatewayError.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	tier := c.classifier.Tier(model)
	budget := c.timeouts.Budget(tier)
	log := c.log(ctx).With("model", model, "tier", tier)

	log.Info("generate request", "timeout", budget)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var resp generateResponse
	err := c.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/api/generate",
		Model:    model,
		Body: generateRequest{
			Model:   model,
			Prompt:  prompt,
			Stream:  false,
			Options: c.options,
		},
	}, &resp)
	if err != nil {
		gwErr := enrich(err, model, tier, budget)
		log.Error("generate request failed", "kind", gwErr.Kind, "status", gwErr.StatusCode, "error", gwErr.Message)
		return "", gwErr
	}

	if resp.Response == nil {
		log.Error("unexpected response format from ollama")
		return "", core.NewMalformedResponseError("unexpected response format from Ollama API: missing response field", nil).WithModel(model)
	}

	log.Info("response received", "duration", time.Since(start))
	return *resp.Response, nil
}
