// Package observability exposes Prometheus metrics for upstream calls to the
// inference server.
package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"modelgateway/internal/core"
	"modelgateway/internal/llmclient"
)

const namespace = "modelgateway"

// Metrics holds the gateway's Prometheus collectors.
//
// Metrics:
//   - modelgateway_upstream_requests_total: upstream calls by endpoint and outcome
//   - modelgateway_upstream_request_duration_seconds: time to response headers (or failure)
//   - modelgateway_upstream_requests_in_flight: calls currently awaiting a response
//   - modelgateway_streams_total: completed and failed streaming chats
//   - modelgateway_stream_fragments_total: decoded NDJSON fragments
//   - modelgateway_stream_malformed_fragments_total: skipped NDJSON lines
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  *prometheus.GaugeVec
	streams   *prometheus.CounterVec
	fragments *prometheus.CounterVec
	malformed *prometheus.CounterVec
}

// Inference calls on large models can run for many minutes.
var durationBuckets = []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180, 600, 1000}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total upstream requests by endpoint and outcome",
			},
			[]string{"provider", "model", "endpoint", "status_code", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Upstream request latency in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"provider", "endpoint", "stream"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "upstream_requests_in_flight",
				Help:      "Upstream requests awaiting a response",
			},
			[]string{"provider", "endpoint"},
		),
		streams: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "streams_total",
				Help:      "Streaming chats by outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		fragments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_fragments_total",
				Help:      "Decoded streaming fragments",
			},
			[]string{"provider", "model"},
		),
		malformed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_malformed_fragments_total",
				Help:      "Streaming lines skipped because they were not a JSON object",
			},
			[]string{"provider", "model"},
		),
	}

	reg.MustRegister(m.requests, m.duration, m.inFlight, m.streams, m.fragments, m.malformed)
	return m
}

// Hooks returns llmclient hooks that record into m.
func (m *Metrics) Hooks() llmclient.Hooks {
	return llmclient.Hooks{
		OnRequestStart: m.onRequestStart,
		OnRequestEnd:   m.onRequestEnd,
		OnStreamEnd:    m.onStreamEnd,
	}
}

func (m *Metrics) onRequestStart(ctx context.Context, info llmclient.RequestInfo) context.Context {
	m.inFlight.WithLabelValues(info.Provider, info.Endpoint).Inc()
	return ctx
}

func (m *Metrics) onRequestEnd(_ context.Context, info llmclient.ResponseInfo) {
	m.inFlight.WithLabelValues(info.Provider, info.Endpoint).Dec()

	statusCode := "0"
	if info.StatusCode != 0 {
		statusCode = strconv.Itoa(info.StatusCode)
	}
	m.requests.WithLabelValues(info.Provider, info.Model, info.Endpoint, statusCode, outcome(info.Error)).Inc()
	m.duration.WithLabelValues(info.Provider, info.Endpoint, strconv.FormatBool(info.Stream)).
		Observe(info.Duration.Seconds())
}

func (m *Metrics) onStreamEnd(_ context.Context, info llmclient.StreamInfo) {
	m.streams.WithLabelValues(info.Provider, info.Model, outcome(info.Error)).Inc()
	m.fragments.WithLabelValues(info.Provider, info.Model).Add(float64(info.Fragments))
	m.malformed.WithLabelValues(info.Provider, info.Model).Add(float64(info.Malformed))
}

// outcome is "success" or the gateway error kind.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := core.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
