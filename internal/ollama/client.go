// Package ollama is the model gateway's client for a local Ollama server:
// connectivity probing, the model catalog, availability checks, and
// tier-aware generate and streaming chat calls.
package ollama

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"modelgateway/internal/core"
	"modelgateway/internal/llmclient"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"

	defaultProbeTimeout             = 5 * time.Second
	defaultCatalogTimeout           = 10 * time.Second
	defaultAvailabilityProbeTimeout = 8 * time.Second
)

// Config holds the client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL string

	// Classifier decides the tier of a model; nil uses DefaultClassifier
	Classifier *Classifier
	Timeouts   TimeoutPolicy

	ProbeTimeout             time.Duration
	CatalogTimeout           time.Duration
	AvailabilityProbeTimeout time.Duration

	// Options is sent with every generate and chat request; nil uses DefaultGenerationOptions
	Options *core.GenerationOptions

	Hooks          llmclient.Hooks
	CircuitBreaker *llmclient.CircuitBreakerConfig
	Logger         *slog.Logger
}

// DefaultConfig returns the configuration for a server on localhost.
func DefaultConfig() Config {
	classifier := DefaultClassifier()
	options := core.DefaultGenerationOptions()
	return Config{
		BaseURL:                  defaultBaseURL,
		Classifier:               &classifier,
		Timeouts:                 DefaultTimeoutPolicy(),
		ProbeTimeout:             defaultProbeTimeout,
		CatalogTimeout:           defaultCatalogTimeout,
		AvailabilityProbeTimeout: defaultAvailabilityProbeTimeout,
		Options:                  &options,
	}
}

// Client talks to the Ollama native API. All settings are fixed at
// construction, so one Client serves concurrent calls without locking.
type Client struct {
	client     *llmclient.Client
	classifier Classifier
	timeouts   TimeoutPolicy
	options    core.GenerationOptions
	hooks      llmclient.Hooks
	logger     *slog.Logger

	probeTimeout             time.Duration
	catalogTimeout           time.Duration
	availabilityProbeTimeout time.Duration
}

// New creates a client using the shared HTTP client factory.
func New(cfg Config) *Client {
	return NewWithHTTPClient(nil, cfg)
}

// NewWithHTTPClient creates a client with a custom HTTP client.
// If httpClient is nil, the default factory client is used.
func NewWithHTTPClient(httpClient *http.Client, cfg Config) *Client {
	cfg = withDefaults(cfg)

	c := &Client{
		classifier:               *cfg.Classifier,
		timeouts:                 cfg.Timeouts,
		options:                  *cfg.Options,
		hooks:                    cfg.Hooks,
		logger:                   cfg.Logger,
		probeTimeout:             cfg.ProbeTimeout,
		catalogTimeout:           cfg.CatalogTimeout,
		availabilityProbeTimeout: cfg.AvailabilityProbeTimeout,
	}

	clientCfg := llmclient.Config{
		ProviderName:   providerName,
		BaseURL:        cfg.BaseURL,
		Hooks:          cfg.Hooks,
		CircuitBreaker: cfg.CircuitBreaker,
	}
	if httpClient == nil {
		c.client = llmclient.New(clientCfg, c.setHeaders)
	} else {
		c.client = llmclient.NewWithHTTPClient(httpClient, clientCfg, c.setHeaders)
	}
	return c
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Classifier == nil {
		cfg.Classifier = def.Classifier
	}
	if cfg.Timeouts.Standard <= 0 {
		cfg.Timeouts.Standard = def.Timeouts.Standard
	}
	if cfg.Timeouts.Large <= 0 {
		cfg.Timeouts.Large = def.Timeouts.Large
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = def.CatalogTimeout
	}
	if cfg.AvailabilityProbeTimeout <= 0 {
		cfg.AvailabilityProbeTimeout = def.AvailabilityProbeTimeout
	}
	if cfg.Options == nil {
		cfg.Options = def.Options
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// SetBaseURL allows configuring a custom base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.client.SetBaseURL(url)
}

// BaseURL returns the inference server URL.
func (c *Client) BaseURL() string {
	return c.client.BaseURL()
}

// Classifier returns the tier classifier in use.
func (c *Client) Classifier() Classifier {
	return c.classifier
}

// Tier returns the tier the classifier assigns to model.
func (c *Client) Tier(model string) core.ModelTier {
	return c.classifier.Tier(model)
}

// RequestBudget returns the timeout applied to generate and chat calls for model.
func (c *Client) RequestBudget(model string) time.Duration {
	return c.timeouts.Budget(c.classifier.Tier(model))
}

// setHeaders forwards the request ID so upstream logs can be correlated.
func (c *Client) setHeaders(req *http.Request) {
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

// log returns the client logger tagged with the request ID carried by ctx.
func (c *Client) log(ctx context.Context) *slog.Logger {
	if requestID := core.GetRequestID(ctx); requestID != "" {
		return c.logger.With("request_id", requestID)
	}
	return c.logger
}

// CheckConnection reports whether the server answers GET /api/version with 200.
// Failures are logged and reduced to false.
func (c *Client) CheckConnection(ctx context.Context) bool {
	if _, err := c.Version(ctx); err != nil {
		c.log(ctx).Error("cannot connect to ollama", "base_url", c.BaseURL(), "error", err)
		return false
	}
	return true
}

// Version returns the server version reported by /api/version.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := c.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/api/version",
	})
	if err != nil {
		return "", err
	}

	// The probe only needs the status; an unreadable version string is not fatal.
	var version versionResponse
	if decodeErr := json.Unmarshal(resp.Body, &version); decodeErr != nil {
		c.log(ctx).Debug("version payload not decodable", "error", decodeErr)
	}
	return version.Version, nil
}
