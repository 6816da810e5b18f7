package ollama

import (
	"io"
	"log/slog"
	"testing"
)

// newTestClient builds a client against url with a silent logger.
func newTestClient(t *testing.T, url string, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg)
}
