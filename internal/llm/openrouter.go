package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sarega/promptprim/internal/domain"
)

// DefaultOpenRouterURL is the cloud aggregator API root.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterBackend talks to an OpenAI-compatible cloud aggregator.
type OpenRouterBackend struct {
	baseURL string
	apiKey  string
	referer string
	title   string
	client  Doer
}

// NewOpenRouterBackend creates a cloud backend. An empty baseURL uses
// DefaultOpenRouterURL; a nil client uses NewHTTPClient.
func NewOpenRouterBackend(baseURL, apiKey string, client Doer) *OpenRouterBackend {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &OpenRouterBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// WithAttribution sets the optional app attribution headers.
func (o *OpenRouterBackend) WithAttribution(referer, title string) *OpenRouterBackend {
	o.referer = referer
	o.title = title
	return o
}

func (o *OpenRouterBackend) Kind() domain.ProviderKind { return domain.ProviderCloud }

func (o *OpenRouterBackend) Name() string { return "openrouter" }

func (o *OpenRouterBackend) Framing() Framing { return sseFraming{} }

func (o *OpenRouterBackend) headers() map[string]string {
	h := map[string]string{}
	if o.apiKey != "" {
		h["Authorization"] = "Bearer " + o.apiKey
	}
	if o.referer != "" {
		h["HTTP-Referer"] = o.referer
	}
	if o.title != "" {
		h["X-Title"] = o.title
	}
	return h
}

// Open sends the request to /chat/completions.
func (o *OpenRouterBackend) Open(ctx context.Context, body map[string]any) (*http.Response, error) {
	if stream, _ := body["stream"].(bool); stream {
		h := o.headers()
		h["Accept"] = "text/event-stream"
		return postJSON(ctx, o.client, o.Name(), o.baseURL+"/chat/completions", h, body)
	}
	return postJSON(ctx, o.client, o.Name(), o.baseURL+"/chat/completions", o.headers(), body)
}

type openRouterCompletion struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractCompletion reads choices[0].message.content.
func (o *OpenRouterBackend) ExtractCompletion(body []byte) (string, error) {
	var result openRouterCompletion
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%s: %w: %v", o.Name(), ErrInvalidResponseShape, err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil || result.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%s: %w: missing choices[0].message.content", o.Name(), ErrInvalidResponseShape)
	}
	return *result.Choices[0].Message.Content, nil
}

type openRouterModels struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// ListModels queries /models.
func (o *OpenRouterBackend) ListModels(ctx context.Context) ([]domain.ModelEntry, error) {
	var result openRouterModels
	if err := getJSON(ctx, o.client, o.Name(), o.baseURL+"/models", o.headers(), &result); err != nil {
		return nil, err
	}
	entries := make([]domain.ModelEntry, 0, len(result.Data))
	for _, m := range result.Data {
		if m.ID == "" {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		entries = append(entries, domain.ModelEntry{ID: m.ID, DisplayName: name, Provider: domain.ProviderCloud})
	}
	return entries, nil
}
