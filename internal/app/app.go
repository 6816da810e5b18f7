// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the model gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelgateway/config"
	"modelgateway/internal/core"
	"modelgateway/internal/gateway"
	"modelgateway/internal/httpclient"
	"modelgateway/internal/llmclient"
	"modelgateway/internal/observability"
	"modelgateway/internal/ollama"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	client   *ollama.Client
	gateway  *gateway.Gateway

	metricsServer *http.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the result of config.Load
	AppConfig *config.LoadResult

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// HTTPClient overrides the client built from AppConfig.HTTP
	HTTPClient *http.Client
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.AppConfig.Config == nil {
		return nil, fmt.Errorf("app config contains nil Config")
	}

	appCfg := cfg.AppConfig.Config
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		config: appCfg,
		logger: logger,
	}

	clientCfg := ollamaConfig(appCfg, logger)
	if appCfg.Metrics.Enabled {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.metrics = observability.NewMetrics(app.registry)
		clientCfg.Hooks = app.metrics.Hooks()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = appCfg.HTTP.Timeout.Std()
		httpCfg.ResponseHeaderTimeout = appCfg.HTTP.ResponseHeaderTimeout.Std()
		httpClient = httpclient.NewHTTPClient(&httpCfg)
	}

	app.client = ollama.NewWithHTTPClient(httpClient, clientCfg)
	app.gateway = gateway.New(app.client, logger)

	app.logStartupInfo(cfg.AppConfig.ConfigFile)
	return app, nil
}

// ollamaConfig maps the loaded configuration onto the client configuration.
func ollamaConfig(cfg *config.Config, logger *slog.Logger) ollama.Config {
	classifier := ollama.NewClassifier(cfg.LargeModels)
	options := core.GenerationOptions{
		NumCtx:      cfg.Generation.NumCtx,
		Temperature: cfg.Generation.Temperature,
		TopK:        cfg.Generation.TopK,
	}

	clientCfg := ollama.Config{
		BaseURL:    cfg.Ollama.BaseURL,
		Classifier: &classifier,
		Timeouts: ollama.TimeoutPolicy{
			Standard: cfg.Timeouts.Standard.Std(),
			Large:    cfg.Timeouts.Large.Std(),
		},
		ProbeTimeout:             cfg.Timeouts.Probe.Std(),
		CatalogTimeout:           cfg.Timeouts.Catalog.Std(),
		AvailabilityProbeTimeout: cfg.Timeouts.AvailabilityProbe.Std(),
		Options:                  &options,
		Logger:                   logger,
	}

	if cfg.CircuitBreaker.Enabled {
		breaker := llmclient.DefaultCircuitBreakerConfig()
		if cfg.CircuitBreaker.FailureThreshold > 0 {
			breaker.FailureThreshold = cfg.CircuitBreaker.FailureThreshold
		}
		if cfg.CircuitBreaker.SuccessThreshold > 0 {
			breaker.SuccessThreshold = cfg.CircuitBreaker.SuccessThreshold
		}
		if cfg.CircuitBreaker.Timeout > 0 {
			breaker.Timeout = cfg.CircuitBreaker.Timeout.Std()
		}
		clientCfg.CircuitBreaker = breaker
	}
	return clientCfg
}

// Gateway returns the collaborator-facing gateway.
func (a *App) Gateway() *gateway.Gateway {
	return a.gateway
}

// Client returns the underlying inference server client.
func (a *App) Client() *ollama.Client {
	return a.client
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// StartMetrics serves /metrics on addr in the background and returns the
// bound address. It is a no-op returning "" when metrics are disabled.
func (a *App) StartMetrics(addr string) (string, error) {
	if a.registry == nil {
		return "", nil
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()

	bound := listener.Addr().String()
	a.logger.Info("serving prometheus metrics", "address", bound, "path", "/metrics")
	return bound, nil
}

// Shutdown stops the metrics server. It is idempotent; after the first call,
// subsequent calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}
	return nil
}

// logStartupInfo logs the effective configuration on startup.
func (a *App) logStartupInfo(configFile string) {
	cfg := a.config

	if configFile != "" {
		a.logger.Debug("configuration file loaded", "path", configFile)
	}
	a.logger.Debug("ollama configured",
		"base_url", cfg.Ollama.BaseURL,
		"standard_timeout", cfg.Timeouts.Standard.Std(),
		"large_timeout", cfg.Timeouts.Large.Std(),
		"large_models", cfg.LargeModels,
	)

	if cfg.Metrics.Enabled {
		a.logger.Debug("prometheus metrics enabled", "address", cfg.Metrics.Address)
	}
	if cfg.CircuitBreaker.Enabled {
		a.logger.Debug("circuit breaker enabled",
			"failure_threshold", cfg.CircuitBreaker.FailureThreshold,
			"timeout", cfg.CircuitBreaker.Timeout.Std(),
		)
	}
}
