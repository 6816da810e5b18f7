// Package llmclient provides the base HTTP client for the inference server with:
// - Request marshaling/unmarshaling
// - Status and transport error classification
// - Request lifecycle hooks for metrics
// - Optional circuit breaking
//
// Every call is a single attempt. Retrying is left to the caller.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"modelgateway/internal/core"
	"modelgateway/internal/httpclient"
)

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the upstream for hooks and breaker names
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	// Hooks observe every upstream call
	Hooks Hooks

	// CircuitBreaker is nil when breaking is disabled
	CircuitBreaker *CircuitBreakerConfig
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit
	FailureThreshold uint32
	// SuccessThreshold is the number of half-open successes needed to close the circuit
	SuccessThreshold uint32
	// Timeout is how long the circuit stays open before probing again
	Timeout time.Duration
}

// DefaultCircuitBreakerConfig returns the breaker settings used when breaking is enabled.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName: providerName,
		BaseURL:      baseURL,
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for the inference server
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
	breaker      *gobreaker.CircuitBreaker
}

// New creates a new LLM client with the given configuration
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), config, headerSetter)
}

// NewWithHTTPClient creates a new LLM client with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}

	if cb := config.CircuitBreaker; cb != nil {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        config.ProviderName,
			MaxRequests: cb.SuccessThreshold,
			Timeout:     cb.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cb.FailureThreshold
			},
			IsSuccessful: countsAsSuccess,
		})
	}

	return c
}

// countsAsSuccess keeps client-side outcomes (404, bad payloads) out of the breaker.
func countsAsSuccess(err error) bool {
	switch core.KindOf(err) {
	case core.ErrorKindConnection, core.ErrorKindServerTrouble, core.ErrorKindTimeout:
		return false
	}
	return true
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// BreakerState returns the circuit state, or "disabled" without a breaker.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     interface{} // Will be JSON marshaled if not nil
	Headers  map[string]string
	// Model labels hooks and metrics; it is not sent upstream
	Model string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes a request, then unmarshals the response
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewMalformedResponseError("failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a single request and returns the raw response.
// Any status other than 200 is returned as a classified *core.GatewayError.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	ctx, finish := c.observe(ctx, req, false)

	resp, err := c.execute(func() (*Response, error) {
		resp, err := c.doRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp, core.ParseUpstreamError(resp.StatusCode, resp.Body)
		}
		return resp, nil
	})

	finish(resp, err)
	return resp, err
}

// DoStream executes a streaming request, returning the open body on status 200.
// The caller must close the body.
func (c *Client) DoStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	ctx, finish := c.observe(ctx, req, true)

	var body io.ReadCloser
	resp, err := c.execute(func() (*Response, error) {
		httpReq, err := c.buildRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, ClassifyTransportError(err)
		}

		if httpResp.StatusCode != http.StatusOK {
			respBody, readErr := io.ReadAll(httpResp.Body)
			if readErr != nil {
				respBody = []byte("failed to read error response")
			}
			_ = httpResp.Body.Close()
			return &Response{StatusCode: httpResp.StatusCode, Body: respBody},
				core.ParseUpstreamError(httpResp.StatusCode, respBody)
		}

		body = httpResp.Body
		return &Response{StatusCode: httpResp.StatusCode}, nil
	})

	finish(resp, err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// execute runs fn through the circuit breaker when one is configured.
func (c *Client) execute(fn func() (*Response, error)) (*Response, error) {
	if c.breaker == nil {
		return fn()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := fn()
		return resp, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, core.NewServerTroubleError(http.StatusServiceUnavailable,
			"circuit breaker is open - inference server temporarily unavailable")
	}
	resp, _ := out.(*Response)
	return resp, err
}

// observe fires OnRequestStart and returns a callback that fires OnRequestEnd.
func (c *Client) observe(ctx context.Context, req Request, stream bool) (context.Context, func(*Response, error)) {
	start := time.Now()
	info := RequestInfo{
		Provider: c.config.ProviderName,
		Model:    req.Model,
		Endpoint: req.Endpoint,
		Method:   req.Method,
		Stream:   stream,
	}
	if c.config.Hooks.OnRequestStart != nil {
		ctx = c.config.Hooks.OnRequestStart(ctx, info)
	}

	return ctx, func(resp *Response, err error) {
		if c.config.Hooks.OnRequestEnd == nil {
			return
		}
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		c.config.Hooks.OnRequestEnd(ctx, ResponseInfo{
			Provider:   info.Provider,
			Model:      info.Model,
			Endpoint:   info.Endpoint,
			StatusCode: statusCode,
			Duration:   time.Since(start),
			Stream:     stream,
			Error:      err,
		})
	}
}

// doRequest executes a single HTTP request
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// ClassifyTransportError maps a transport failure to a timeout or connection error.
func ClassifyTransportError(err error) *core.GatewayError {
	var gwErr *core.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if IsTimeout(err) {
		return core.NewTimeoutError("request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return core.NewConnectionError("request canceled", err)
	}
	return core.NewConnectionError("failed to reach inference server: "+err.Error(), err)
}

// IsTimeout reports whether err came from an exceeded deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
