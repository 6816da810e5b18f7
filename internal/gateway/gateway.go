// Package gateway is the collaborator-facing entry point of the model gateway.
// It validates requests, checks model availability, and dispatches to the
// streaming or one-shot generation path of the inference backend.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modelgateway/internal/core"
	"modelgateway/internal/ollama"
)

// EmptyResponsePlaceholder is what callers show when a model produced no text.
// The gateway itself returns "" in that case.
const EmptyResponsePlaceholder = "No response from model"

const (
	installHint = "\n\nYou can install models using the Ollama command line. For example: 'ollama pull phi3'"
	largeHint   = "\n\nThis is a large model that may take several minutes to load the first time. " +
		"If it worked in your terminal, try waiting for a while and making the request again."
)

// Backend is the inference server the gateway talks to.
type Backend interface {
	// CheckConnection reports whether the server is reachable
	CheckConnection(ctx context.Context) bool

	// Version returns the server version string
	Version(ctx context.Context) (string, error)

	// ListModels returns the catalog, or a single sentinel entry on failure
	ListModels(ctx context.Context) []core.CatalogEntry

	// IsModelAvailable reports whether model can serve requests
	IsModelAvailable(ctx context.Context, model string) bool

	// Generate runs a one-shot completion for a formatted prompt
	Generate(ctx context.Context, model, prompt string) (string, error)

	// StreamChat runs a streaming chat and returns the assembled reply
	StreamChat(ctx context.Context, model string, messages []core.ChatMessage) (string, error)

	// Tier classifies model for timeout selection
	Tier(model string) core.ModelTier
}

var _ Backend = (*ollama.Client)(nil)

// Status is the connectivity report for the inference server.
type Status struct {
	Connected bool   `json:"connected"`
	Version   string `json:"version,omitempty"`
	Message   string `json:"message"`
}

// Gateway sends chat requests to a backend. It holds no per-call state and
// is safe for concurrent use.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a gateway over backend. A nil logger uses slog.Default().
func New(backend Backend, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{backend: backend, logger: logger}
}

// SendMessage sends messages to model over the streaming path.
func (g *Gateway) SendMessage(ctx context.Context, model string, messages []core.ChatMessage) (string, error) {
	return g.Send(ctx, core.GatewayRequest{
		Model:     model,
		Messages:  messages,
		Streaming: true,
	})
}

// Send validates req, checks availability for standard-tier models, and
// dispatches it. Errors are always *core.GatewayError.
func (g *Gateway) Send(ctx context.Context, req core.GatewayRequest) (string, error) {
	ctx, requestID := core.EnsureRequestID(ctx)
	model := strings.TrimSpace(req.Model)
	log := g.logger.With("request_id", requestID, "model", model)

	if model == "" {
		return "", core.NewInvalidRequestError("model is required", nil)
	}
	if len(req.Messages) == 0 {
		return "", core.NewInvalidRequestError("at least one message is required", nil).WithModel(model)
	}

	tier := g.backend.Tier(model)
	if tier == core.TierLarge {
		log.Info("skipping availability check for large model")
	} else if !g.backend.IsModelAvailable(ctx, model) {
		log.Warn("model is not available")
		return "", core.NewNotFoundError(ollama.NotFoundMessage(model)).WithModel(model)
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	if req.Streaming {
		text, err = g.backend.StreamChat(ctx, model, req.Messages)
	} else {
		text, err = g.backend.Generate(ctx, model, ollama.FormatPrompt(req.Messages))
	}
	if err != nil {
		return "", withHints(err, model, tier)
	}

	log.Info("message sent",
		"streaming", req.Streaming,
		"tier", tier,
		"duration", time.Since(start),
		"chars", len(text))
	return text, nil
}

// withHints appends install and large-model guidance to connection failures.
func withHints(err error, model string, tier core.ModelTier) error {
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) {
		return core.NewConnectionError(err.Error(), err).WithModel(model)
	}
	if gwErr.Kind != core.ErrorKindConnection {
		return gwErr
	}

	hinted := gwErr.WithModel(model)
	if strings.Contains(hinted.Message, "pull") {
		hinted.Message += installHint
	}
	if tier == core.TierLarge && !strings.Contains(hinted.Message, "large model") {
		hinted.Message += largeHint
	}
	return hinted
}

// ListModels returns the current catalog. It is queried fresh on every call.
func (g *Gateway) ListModels(ctx context.Context) []core.CatalogEntry {
	ctx, _ = core.EnsureRequestID(ctx)
	return g.backend.ListModels(ctx)
}

// CheckConnection reports whether the inference server is reachable.
func (g *Gateway) CheckConnection(ctx context.Context) bool {
	ctx, _ = core.EnsureRequestID(ctx)
	return g.backend.CheckConnection(ctx)
}

// IsModelAvailable reports whether model can serve requests.
func (g *Gateway) IsModelAvailable(ctx context.Context, model string) bool {
	ctx, _ = core.EnsureRequestID(ctx)
	return g.backend.IsModelAvailable(ctx, model)
}

// Status reports connectivity and, when connected, the server version.
func (g *Gateway) Status(ctx context.Context) Status {
	ctx, requestID := core.EnsureRequestID(ctx)

	version, err := g.backend.Version(ctx)
	if err != nil {
		g.logger.Error("ollama status check failed", "request_id", requestID, "error", err)
		return Status{
			Connected: false,
			Message:   "Cannot connect to Ollama. Make sure it is running.",
		}
	}
	return Status{
		Connected: true,
		Version:   version,
		Message:   "Ollama is running",
	}
}
