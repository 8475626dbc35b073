package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sarega/promptprim/internal/domain"
)

// DefaultOllamaURL is where a local Ollama server listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaBackend talks to a local Ollama server. It sends no auth header.
type OllamaBackend struct {
	baseURL string
	client  Doer
}

// NewOllamaBackend creates a local backend. An empty baseURL uses
// DefaultOllamaURL; a nil client uses NewHTTPClient.
func NewOllamaBackend(baseURL string, client Doer) *OllamaBackend {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &OllamaBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (o *OllamaBackend) Kind() domain.ProviderKind { return domain.ProviderLocal }

func (o *OllamaBackend) Name() string { return "ollama" }

func (o *OllamaBackend) Framing() Framing { return ndjsonFraming{} }

// Open sends the request to /api/chat.
func (o *OllamaBackend) Open(ctx context.Context, body map[string]any) (*http.Response, error) {
	return postJSON(ctx, o.client, o.Name(), o.baseURL+"/api/chat", nil, body)
}

type ollamaCompletion struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

// ExtractCompletion reads message.content.
func (o *OllamaBackend) ExtractCompletion(body []byte) (string, error) {
	var result ollamaCompletion
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%s: %w: %v", o.Name(), ErrInvalidResponseShape, err)
	}
	if result.Message == nil || result.Message.Content == nil {
		return "", fmt.Errorf("%s: %w: missing message.content", o.Name(), ErrInvalidResponseShape)
	}
	return *result.Message.Content, nil
}

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// ListModels queries /api/tags.
func (o *OllamaBackend) ListModels(ctx context.Context) ([]domain.ModelEntry, error) {
	var result ollamaTags
	if err := getJSON(ctx, o.client, o.Name(), o.baseURL+"/api/tags", nil, &result); err != nil {
		return nil, err
	}
	entries := make([]domain.ModelEntry, 0, len(result.Models))
	for _, m := range result.Models {
		id := m.Model
		if id == "" {
			id = m.Name
		}
		if id == "" {
			continue
		}
		name := m.Name
		if name == "" {
			name = id
		}
		entries = append(entries, domain.ModelEntry{ID: id, DisplayName: name, Provider: domain.ProviderLocal})
	}
	return entries, nil
}
