package ollama

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"modelgateway/internal/core"
	"modelgateway/internal/llmclient"
)

// streamState tracks where a streaming call is in its lifecycle.
type streamState int

const (
	stateAwaitingResponse streamState = iota
	stateStreaming
	stateCompleted
	stateFailed
)

func (s streamState) String() string {
	switch s {
	case stateAwaitingResponse:
		return "awaiting_response"
	case stateStreaming:
		return "streaming"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// fragment is one decoded NDJSON line of a streaming response.
type fragment struct {
	delta string
	err   string
}

// decodeFragment extracts the content delta from one line. The delta comes
// from message.content, else from response; ok is false for lines that are
// not a JSON object.
func decodeFragment(line []byte) (fragment, bool) {
	if !gjson.ValidBytes(line) {
		return fragment{}, false
	}
	parsed := gjson.ParseBytes(line)
	if !parsed.IsObject() {
		return fragment{}, false
	}

	f := fragment{err: parsed.Get("error").String()}
	if content := parsed.Get("message.content"); content.Exists() {
		f.delta = content.String()
	} else if response := parsed.Get("response"); response.Exists() {
		f.delta = response.String()
	}
	return f, true
}

// streamConsumer aggregates deltas from a single stream, strictly in arrival order.
type streamConsumer struct {
	logger    *slog.Logger
	state     streamState
	text      strings.Builder
	fragments int
	malformed int
	start     time.Time
	firstText time.Duration
}

func newStreamConsumer(logger *slog.Logger) *streamConsumer {
	return &streamConsumer{
		logger: logger,
		state:  stateAwaitingResponse,
		start:  time.Now(),
	}
}

// consume reads body line by line until EOF. Malformed lines are logged and
// skipped; only a read error ends the stream early.
func (s *streamConsumer) consume(body io.Reader) error {
	s.state = stateStreaming
	reader := bufio.NewReader(body)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.state = stateCompleted
				return nil
			}
			s.state = stateFailed
			return err
		}
	}
}

func (s *streamConsumer) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	f, ok := decodeFragment(line)
	if !ok {
		s.malformed++
		s.logger.Warn("failed to parse streaming response chunk", "chunk", string(line))
		return
	}
	s.fragments++

	if f.err != "" {
		s.logger.Warn("ollama reported an error mid-stream", "error", f.err)
	}
	if f.delta == "" {
		return
	}
	if s.text.Len() == 0 {
		s.firstText = time.Since(s.start)
		s.logger.Info("first content received", "after", s.firstText)
	}
	s.text.WriteString(f.delta)
}

// StreamChat sends a streaming /api/chat request and returns the assembled
// reply. On a timeout or transport failure the partial text is discarded and
// an error returned. A clean stream with no content yields "".
func (c *Client) StreamChat(ctx context.Context, model string, messages []core.ChatMessage) (string, error) {
	tier := c.classifier.Tier(model)
	budget := c.timeouts.Budget(tier)
	log := c.log(ctx).With("model", model, "tier", tier)

	log.Info("streaming request", "timeout", budget)

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	consumer := newStreamConsumer(log)

	body, err := c.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/api/chat",
		Model:    model,
		Body: chatRequest{
			Model:    model,
			Messages: toChatMessages(messages),
			Stream:   true,
			Options:  c.options,
		},
	})
	if err != nil {
		consumer.state = stateFailed
		gwErr := enrich(err, model, tier, budget)
		log.Error("streaming request failed", "kind", gwErr.Kind, "status", gwErr.StatusCode, "error", gwErr.Message)
		c.reportStream(ctx, model, consumer, gwErr)
		return "", gwErr
	}
	defer func() {
		_ = body.Close()
	}()

	if err := consumer.consume(body); err != nil {
		// Body reads can surface a cancelled deadline as a generic read error.
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		gwErr := enrich(err, model, tier, budget)
		log.Error("stream aborted, discarding partial response",
			"kind", gwErr.Kind,
			"state", consumer.state,
			"discarded_chars", consumer.text.Len(),
			"error", gwErr.Message)
		c.reportStream(ctx, model, consumer, gwErr)
		return "", gwErr
	}

	log.Info("stream completed",
		"duration", time.Since(consumer.start),
		"fragments", consumer.fragments,
		"malformed", consumer.malformed,
		"chars", consumer.text.Len())
	c.reportStream(ctx, model, consumer, nil)
	return consumer.text.String(), nil
}

func (c *Client) reportStream(ctx context.Context, model string, s *streamConsumer, err error) {
	if c.hooks.OnStreamEnd == nil {
		return
	}
	c.hooks.OnStreamEnd(ctx, llmclient.StreamInfo{
		Provider:  providerName,
		Model:     model,
		Fragments: s.fragments,
		Malformed: s.malformed,
		Chars:     s.text.Len(),
		Duration:  time.Since(s.start),
		Error:     err,
	})
}
