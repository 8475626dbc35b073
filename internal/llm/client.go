// Package llm speaks to the chat providers: it maps agent settings onto
// request bodies, decodes the two streaming framings into plain text
// deltas, and keeps the model catalog that routes a model id to its
// provider.
package llm

import (
	"context"
	"io"
	"net/http"

	"github.com/sarega/promptprim/internal/domain"
)

// Backend is one provider's wire contract.
type Backend interface {
	// Kind returns the provider kind served by this backend.
	Kind() domain.ProviderKind

	// Name returns a short provider name for logs and errors.
	Name() string

	// Open POSTs a chat request body. A nil error means a 2xx response
	// whose body the caller must close.
	Open(ctx context.Context, body map[string]any) (*http.Response, error)

	// Framing returns the streaming framing of this provider.
	Framing() Framing

	// ExtractCompletion pulls the completion text out of a
	// non-streaming response envelope.
	ExtractCompletion(body []byte) (string, error)

	// ListModels queries the provider's model listing endpoint.
	ListModels(ctx context.Context) ([]domain.ModelEntry, error)
}

// ReadCompletion drains a non-streaming response and extracts its text.
func ReadCompletion(b Backend, resp *http.Response) (string, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Provider: b.Name(), Err: err}
	}
	return b.ExtractCompletion(data)
}
