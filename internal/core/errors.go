// Package core provides core types and error classification for the model gateway.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind identifies the class of failure. Callers branch on the kind,
// never on the message text.
type ErrorKind string

const (
	// ErrorKindNotFound indicates the model is absent upstream
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindServerTrouble indicates an upstream 5xx, usually a model that is still loading
	ErrorKindServerTrouble ErrorKind = "server_trouble"
	// ErrorKindTimeout indicates the tier budget was exceeded
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindUpstream indicates any other non-200 upstream response
	ErrorKindUpstream ErrorKind = "upstream_error"
	// ErrorKindMalformedResponse indicates a 200 response with an unexpected shape
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	// ErrorKindConnection indicates the inference server could not be reached
	ErrorKindConnection ErrorKind = "connection_error"
	// ErrorKindInvalidRequest indicates the caller supplied an unusable request
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
)

// GatewayError is the single error type returned by the gateway clients.
type GatewayError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Model      string    `json:"model,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Model, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status a caller should surface for this error.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case ErrorKindInvalidRequest:
		return http.StatusBadRequest
	case ErrorKindServerTrouble, ErrorKindUpstream, ErrorKindMalformedResponse, ErrorKindConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    e.Kind,
			"message": e.Message,
		},
	}
}

// WithModel returns a copy of the error tagged with the model name.
func (e *GatewayError) WithModel(model string) *GatewayError {
	clone := *e
	clone.Model = model
	return &clone
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *GatewayError {
	return &GatewayError{
		Kind:       ErrorKindNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewServerTroubleError creates an error for upstream 500/502/504 responses.
func NewServerTroubleError(statusCode int, message string) *GatewayError {
	return &GatewayError{
		Kind:       ErrorKindServerTrouble,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewTimeoutError creates a new timeout error (504)
func NewTimeoutError(message string, err error) *GatewayError {
	return &GatewayError{
		Kind:       ErrorKindTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// NewUpstreamError creates an error for any other non-200 upstream response.
func NewUpstreamError(statusCode int, message string) *GatewayError {
	return &GatewayError{
		Kind:       ErrorKindUpstream,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewMalformedResponseError creates an error for a 200 response that could not be used.
func NewMalformedResponseError(message string, err error) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindMalformedResponse,
		Message: message,
		Err:     err,
	}
}

// NewConnectionError creates an error for transport-level failures.
func NewConnectionError(message string, err error) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindConnection,
		Message: message,
		Err:     err,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Kind:       ErrorKindInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// IsModelNotFoundBody reports whether an upstream error body describes a missing model.
func IsModelNotFoundBody(body string) bool {
	return strings.Contains(body, "model") && strings.Contains(body, "not found")
}

// ParseUpstreamError classifies a non-200 response from the inference server.
// The message is the upstream error text; callers enrich it with guidance.
func ParseUpstreamError(statusCode int, body []byte) *GatewayError {
	var errorResponse struct {
		Error string `json:"error"`
	}

	raw := string(body)
	message := raw
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error != "" {
		message = errorResponse.Error
	}

	switch {
	case statusCode == http.StatusNotFound && IsModelNotFoundBody(raw):
		return NewNotFoundError(message)
	case statusCode == http.StatusInternalServerError,
		statusCode == http.StatusBadGateway,
		statusCode == http.StatusGatewayTimeout:
		return NewServerTroubleError(statusCode, message)
	default:
		return NewUpstreamError(statusCode, message)
	}
}

// KindOf returns the kind of a gateway error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
