package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgateway/internal/core"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"phi3:mini", "Phi-3 Mini"},
		{"phi3:latest", "Phi-3"},
		{"llama3:8b", "Llama 3 8B"},
		{"llama3:70b-instruct", "Llama 3 70B"},
		{"llama3:latest", "Llama 3"},
		{"llama2:7b", "Llama 2 7B"},
		{"llama2:13b", "Llama 2 13B"},
		{"gemma:2b", "Gemma 2B"},
		{"gemma:7b", "Gemma 7B"},
		{"mistral:7b", "Mistral 7B"},
		{"mistral:latest", "Mistral"},
		{"deepseek-coder:6.7b", "DeepSeek Coder 6.7B"},
		{"deepseek-r1:14b", "DeepSeek R1 14B"},
		{"deepseek-llm", "DeepSeek"},
		{"codellama:13b", "codellama:13b"},
		{"my-custom-model", "my-custom-model"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.id))
		})
	}
}

func catalogServer(t *testing.T, tagsStatus int, tagsBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"0.5.7"}`))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(tagsStatus)
		_, _ = w.Write([]byte(tagsBody))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestListModels_Success(t *testing.T) {
	server := catalogServer(t, http.StatusOK, `{"models":[{"name":"llama3:8b"},{"name":"phi3:mini"},{"name":"custom"}]}`)
	client := newTestClient(t, server.URL)

	entries := client.ListModels(context.Background())

	assert.Equal(t, []core.CatalogEntry{
		{ID: "llama3:8b", DisplayName: "Llama 3 8B"},
		{ID: "phi3:mini", DisplayName: "Phi-3 Mini"},
		{ID: "custom", DisplayName: "custom"},
	}, entries)
}

func TestListModels_Idempotent(t *testing.T) {
	server := catalogServer(t, http.StatusOK, `{"models":[{"name":"gemma:2b"},{"name":"mistral:7b"}]}`)
	client := newTestClient(t, server.URL)

	first := client.ListModels(context.Background())
	second := client.ListModels(context.Background())

	assert.Equal(t, first, second)
}

func TestListModels_NotCached(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"0.5.7"}`))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"models":[{"name":"gemma:2b"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"gemma:2b"},{"name":"phi3:mini"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)

	assert.Len(t, client.ListModels(context.Background()), 1)
	assert.Len(t, client.ListModels(context.Background()), 2)
}

func TestListModels_Sentinels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		wantID string
	}{
		{"empty catalog", http.StatusOK, `{"models":[]}`, core.SentinelNoModels},
		{"missing models field", http.StatusOK, `{}`, core.SentinelNoModels},
		{"http error", http.StatusInternalServerError, `{"error":"boom"}`, core.SentinelHTTPError},
		{"parse error", http.StatusOK, `{"models":`, core.SentinelParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := catalogServer(t, tt.status, tt.body)
			client := newTestClient(t, server.URL)

			entries := client.ListModels(context.Background())

			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantID, entries[0].ID)
			assert.True(t, entries[0].IsSentinel())
			assert.NotEmpty(t, entries[0].DisplayName)
		})
	}
}

func TestListModels_NotRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url)

	entries := client.ListModels(context.Background())

	require.Len(t, entries, 1)
	assert.Equal(t, core.SentinelNotRunning, entries[0].ID)
}

func TestCheckConnection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"server error", http.StatusInternalServerError, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/version", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"version":"0.5.7"}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			assert.Equal(t, tt.want, client.CheckConnection(context.Background()))
		})
	}
}

func TestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"0.6.2"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	version, err := client.Version(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "0.6.2", version)
}

func TestCheckConnection_ForwardsRequestID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(`{"version":"0.5.7"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := core.WithRequestID(context.Background(), "req-42")

	require.True(t, client.CheckConnection(ctx))
	assert.Equal(t, "req-42", got)
}
