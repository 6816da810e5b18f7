package ollama

import (
	"fmt"
	"net/http"
	"time"

	"modelgateway/internal/core"
	"modelgateway/internal/llmclient"
)

const largeTimeoutGuidance = "This is a very large model that takes significant time to load. " +
	"The model might still be loading in the background. You can try:\n" +
	"1. Wait a few minutes and try again\n" +
	"2. Check Ollama logs in the terminal\n" +
	"3. Restart the Ollama service\n" +
	"4. Consider using a smaller model if immediate responses are needed"

const standardTimeoutGuidance = "The model might be still loading or the response is taking too long. " +
	"You may need to restart Ollama."

// NotFoundMessage tells the user how to fetch a missing model.
func NotFoundMessage(model string) string {
	return fmt.Sprintf("Model '%s' not found. You need to download it first using the command: ollama pull %s", model, model)
}

func serverTroubleMessage(model string, statusCode int) string {
	return fmt.Sprintf("Model '%s' is having trouble loading or responding (Error %d). "+
		"Large models may take several minutes to load. Try restarting Ollama or checking the Ollama logs.",
		model, statusCode)
}

func timeoutMessage(model string, budget time.Duration, tier core.ModelTier) string {
	guidance := standardTimeoutGuidance
	if tier == core.TierLarge {
		guidance = largeTimeoutGuidance
	}
	return fmt.Sprintf("Request to model '%s' timed out after %s.\n\n%s", model, budget, guidance)
}

// enrich turns a transport-level classification into a user-facing error for model.
// The kind is preserved; only the message gains guidance.
func enrich(err error, model string, tier core.ModelTier, budget time.Duration) *core.GatewayError {
	gwErr := llmclient.ClassifyTransportError(err).WithModel(model)

	switch gwErr.Kind {
	case core.ErrorKindNotFound:
		gwErr.Message = NotFoundMessage(model)
	case core.ErrorKindServerTrouble:
		switch gwErr.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
			gwErr.Message = serverTroubleMessage(model, gwErr.StatusCode)
		}
	case core.ErrorKindTimeout:
		gwErr.Message = timeoutMessage(model, budget, tier)
	case core.ErrorKindUpstream:
		gwErr.Message = fmt.Sprintf("API error (status %d): %s", gwErr.StatusCode, gwErr.Message)
	}
	return gwErr
}
