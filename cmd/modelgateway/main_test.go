package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves the subset of the Ollama API the CLI touches.
type fakeOllama struct {
	chatLines []string
	generate  string
	prompts   []string
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/version":
		_, _ = io.WriteString(w, `{"version":"0.5.7"}`)
	case "/api/tags":
		_, _ = io.WriteString(w, `{"models":[{"name":"phi3:mini"},{"name":"deepseek-r1:14b"}]}`)
	case "/api/generate":
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if opts, ok := req["options"].(map[string]any); ok && opts["num_predict"] != nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"model not found"}`)
			return
		}
		f.prompts = append(f.prompts, req["prompt"].(string))
		_, _ = io.WriteString(w, `{"response":"`+f.generate+`"}`)
	case "/api/chat":
		_, _ = io.WriteString(w, strings.Join(f.chatLines, "\n"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// setup points the CLI at upstream from an empty working directory.
func setup(t *testing.T, upstream string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OLLAMA_API_URL", upstream)
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("GATEWAY_LARGE_MODELS", "")
	_ = os.Unsetenv("GATEWAY_LARGE_MODELS")
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "usage:")

	code, stdout, _ := runCLI(t, "", "-version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "modelgateway")
}

func TestRun_UnknownCommand(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{})
	defer server.Close()
	setup(t, server.URL)

	code, _, stderr := runCLI(t, "", "explode")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "explode"`)
}

func TestRun_Status(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{})
	defer server.Close()
	setup(t, server.URL)

	code, stdout, _ := runCLI(t, "", "status")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "version 0.5.7")
}

func TestRun_StatusDisconnected(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{})
	url := server.URL
	server.Close()
	setup(t, url)

	code, stdout, _ := runCLI(t, "", "status")
	assert.Equal(t, exitFail, code)
	assert.Contains(t, stdout, "disconnected")
}

func TestRun_Models(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{})
	defer server.Close()
	setup(t, server.URL)

	code, stdout, _ := runCLI(t, "", "models")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "phi3:mini")
	assert.Contains(t, stdout, "Phi-3 Mini")
	assert.Contains(t, stdout, "DeepSeek R1 14B")
}

func TestRun_ModelsNotRunning(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{})
	url := server.URL
	server.Close()
	setup(t, url)

	code, stdout, _ := runCLI(t, "", "models")
	assert.Equal(t, exitFail, code)
	assert.Contains(t, stdout, "ollama-not-running")
}

func TestRun_Available(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{})
	defer server.Close()
	setup(t, server.URL)

	code, stdout, _ := runCLI(t, "", "available", "-model", "phi3:mini")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "phi3:mini: available")

	code, stdout, _ = runCLI(t, "", "available", "-model", "ghost")
	assert.Equal(t, exitFail, code)
	assert.Contains(t, stdout, "ghost: not available")

	code, _, _ = runCLI(t, "", "available")
	assert.Equal(t, exitUsage, code)
}

func TestRun_ChatStreaming(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{chatLines: []string{
		`{"message":{"content":"Hel"}}`,
		`{"message":{"content":"lo!"}}`,
		`{"done":true}`,
	}})
	defer server.Close()
	setup(t, server.URL)

	code, stdout, stderr := runCLI(t, "", "chat", "-model", "phi3:mini", "say", "hello")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "Hello!\n", stdout)
}

func TestRun_ChatEmptyReplyPrintsPlaceholder(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{chatLines: []string{`{"done":true}`}})
	defer server.Close()
	setup(t, server.URL)

	code, stdout, _ := runCLI(t, "", "chat", "-model", "phi3:mini", "hi")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "No response from model\n", stdout)
}

func TestRun_ChatDirectReadsStdin(t *testing.T) {
	fake := &fakeOllama{generate: "pong"}
	server := httptest.NewServer(fake)
	defer server.Close()
	setup(t, server.URL)

	code, stdout, stderr := runCLI(t, "ping\n", "chat", "-model", "phi3:mini", "-system", "be brief", "-direct")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "pong\n", stdout)
	require.Len(t, fake.prompts, 1)
	assert.Equal(t, "[SYSTEM]: be brief\n\n[USER]: ping\n\n[ASSISTANT]: ", fake.prompts[0])
}

func TestRun_ChatErrors(t *testing.T) {
	server := httptest.NewServer(&fakeOllama{})
	defer server.Close()
	setup(t, server.URL)

	code, _, stderr := runCLI(t, "", "chat", "-model", "ghost-model", "hi")
	assert.Equal(t, exitFail, code)
	assert.Contains(t, stderr, "not_found")
	assert.Contains(t, stderr, "ollama pull ghost-model")

	code, _, stderr = runCLI(t, "", "chat", "hi")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "invalid_request")

	code, _, _ = runCLI(t, "", "chat", "-model", "phi3:mini")
	assert.Equal(t, exitUsage, code)
}
