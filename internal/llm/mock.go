package llm

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/sarega/promptprim/internal/domain"
)

// MockBackend is a test double for Backend. Unset funcs fall back to a
// canned response in the framing of ProviderKind.
type MockBackend struct {
	ProviderKind domain.ProviderKind
	OpenFunc     func(ctx context.Context, body map[string]any) (*http.Response, error)
	ListFunc     func(ctx context.Context) ([]domain.ModelEntry, error)

	// Bodies records every request body passed to Open.
	Bodies []map[string]any
}

func (m *MockBackend) Kind() domain.ProviderKind {
	if m.ProviderKind == "" {
		return domain.ProviderCloud
	}
	return m.ProviderKind
}

func (m *MockBackend) Name() string { return "mock-" + string(m.Kind()) }

func (m *MockBackend) Framing() Framing { return FramingFor(m.Kind()) }

func (m *MockBackend) Open(ctx context.Context, body map[string]any) (*http.Response, error) {
	m.Bodies = append(m.Bodies, body)
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, body)
	}
	if stream, _ := body["stream"].(bool); stream {
		if m.Kind() == domain.ProviderLocal {
			return MockResponse(`{"message":{"content":"mock "}}` + "\n" + `{"message":{"content":"response"},"done":true}` + "\n"), nil
		}
		return MockResponse("data: {\"choices\":[{\"delta\":{\"content\":\"mock \"}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"response\"}}]}\n\ndata: [DONE]\n\n"), nil
	}
	if m.Kind() == domain.ProviderLocal {
		return MockResponse(`{"message":{"role":"assistant","content":"mock response"}}`), nil
	}
	return MockResponse(`{"choices":[{"message":{"role":"assistant","content":"mock response"}}]}`), nil
}

func (m *MockBackend) ExtractCompletion(body []byte) (string, error) {
	if m.Kind() == domain.ProviderLocal {
		return (&OllamaBackend{}).ExtractCompletion(body)
	}
	return (&OpenRouterBackend{}).ExtractCompletion(body)
}

func (m *MockBackend) ListModels(ctx context.Context) ([]domain.ModelEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []domain.ModelEntry{{ID: "mock-model", DisplayName: "Mock", Provider: m.Kind()}}, nil
}

// MockResponse wraps body in a 200 response.
func MockResponse(body string) *http.Response {
	return MockStreamResponse(io.NopCloser(strings.NewReader(body)))
}

// MockStreamResponse wraps an arbitrary body reader in a 200 response.
func MockStreamResponse(body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     make(http.Header),
		Body:       body,
	}
}
