package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestOpenRouterOpenSendsBearerAndBody(t *testing.T) {
	var gotAuth, gotPath, gotTitle string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[{"message":{"content":"hi there"}}]}`))
	}))
	defer srv.Close()

	b := NewOpenRouterBackend(srv.URL+"/", "sk-test", srv.Client()).WithAttribution("https://example.com", "PromptPrim")
	resp, err := b.Open(context.Background(), map[string]any{"model": "m", "stream": false})
	require.NoError(t, err)
	text, err := ReadCompletion(b, resp)
	require.NoError(t, err)

	assert.Equal(t, "hi there", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "PromptPrim", gotTitle)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "m", gotBody["model"])
}

func TestOllamaOpenHasNoAuth(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"message":{"role":"assistant","content":"local"}}`))
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, srv.Client())
	resp, err := b.Open(context.Background(), map[string]any{"model": "llama3", "stream": false})
	require.NoError(t, err)
	text, err := ReadCompletion(b, resp)
	require.NoError(t, err)

	assert.Equal(t, "local", text)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "/api/chat", gotPath)
}

func TestOpenAPIErrorCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient credits", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	b := NewOpenRouterBackend(srv.URL, "k", srv.Client())
	_, err := b.Open(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPI)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "insufficient credits", apiErr.Body)
	assert.Contains(t, apiErr.Error(), "openrouter: API error (402)")
}

func TestOpenNetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := NewOllamaBackend(url, nil)
	_, err := b.Open(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkUnreachable)
}

func TestOpenCancelledIsNotNetworkError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewOllamaBackend("http://127.0.0.1:1", nil)
	_, err := b.Open(ctx, map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNetworkUnreachable)
}

func TestExtractCompletionShapes(t *testing.T) {
	cloud := NewOpenRouterBackend("", "", nil)
	local := NewOllamaBackend("", nil)

	tests := []struct {
		name    string
		backend Backend
		body    string
		want    string
		wantErr bool
	}{
		{"cloud ok", cloud, `{"choices":[{"message":{"content":"x"}}]}`, "x", false},
		{"cloud empty content", cloud, `{"choices":[{"message":{"content":""}}]}`, "", false},
		{"cloud no choices", cloud, `{"choices":[]}`, "", true},
		{"cloud local envelope", cloud, `{"message":{"content":"x"}}`, "", true},
		{"cloud not json", cloud, `<html>`, "", true},
		{"local ok", local, `{"message":{"content":"y"}}`, "y", false},
		{"local cloud envelope", local, `{"choices":[{"message":{"content":"x"}}]}`, "", true},
		{"local null message", local, `{"message":null}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.backend.ExtractCompletion([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponseShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.Write([]byte(`{"data":[{"id":"openai/gpt-4o","name":"GPT-4o"},{"id":""},{"id":"x/y"}]}`))
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest"},{"name":"phi3"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cloud, err := NewOpenRouterBackend(srv.URL, "", srv.Client()).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelEntry{
		{ID: "openai/gpt-4o", DisplayName: "GPT-4o", Provider: domain.ProviderCloud},
		{ID: "x/y", DisplayName: "x/y", Provider: domain.ProviderCloud},
	}, cloud)

	local, err := NewOllamaBackend(srv.URL, srv.Client()).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelEntry{
		{ID: "llama3:latest", DisplayName: "llama3:latest", Provider: domain.ProviderLocal},
		{ID: "phi3", DisplayName: "phi3", Provider: domain.ProviderLocal},
	}, local)
}

func TestStreamingThroughServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{`data: {"choices":[{"delta":{"content":"Hel`, `lo"}}]}` + "\n", sseLine(" world"), "data: [DONE]\n"} {
			io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	b := NewOpenRouterBackend(srv.URL, "", srv.Client())
	resp, err := b.Open(context.Background(), map[string]any{"stream": true})
	require.NoError(t, err)
	defer resp.Body.Close()

	got := collect(t, NewDecoder(b.Framing()), resp.Body)
	assert.Equal(t, []string{"Hello", " world"}, got)
}

func TestMockBackendDefaults(t *testing.T) {
	for _, kind := range []domain.ProviderKind{domain.ProviderCloud, domain.ProviderLocal} {
		m := &MockBackend{ProviderKind: kind}
		resp, err := m.Open(context.Background(), map[string]any{"stream": true})
		require.NoError(t, err)
		got := collect(t, NewDecoder(m.Framing()), resp.Body)
		assert.Equal(t, "mock response", got[0]+got[1])

		resp, err = m.Open(context.Background(), map[string]any{"stream": false})
		require.NoError(t, err)
		text, err := ReadCompletion(m, resp)
		require.NoError(t, err)
		assert.Equal(t, "mock response", text)
		assert.Len(t, m.Bodies, 2)
	}
}
