package llmclient

import (
	"context"
	"time"
)

// RequestInfo describes an upstream call about to be made.
type RequestInfo struct {
	Provider string
	Model    string
	Endpoint string
	Method   string
	Stream   bool
}

// ResponseInfo describes a finished upstream call. For streams it fires once
// the response headers arrive, before the body is consumed.
type ResponseInfo struct {
	Provider   string
	Model      string
	Endpoint   string
	StatusCode int
	Duration   time.Duration
	Stream     bool
	Error      error
}

// Hooks observe upstream calls. Nil fields are skipped.
type Hooks struct {
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
	OnStreamEnd    func(ctx context.Context, info StreamInfo)
}

// StreamInfo summarizes a consumed stream body.
type StreamInfo struct {
	Provider  string
	Model     string
	Fragments int
	Malformed int
	Chars     int
	Duration  time.Duration
	Error     error
}
