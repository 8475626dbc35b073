package llm

import (
	"errors"
	"fmt"
)

// Sentinel conditions. Typed errors below match them with errors.Is.
var (
	ErrModelNotFound        = errors.New("model not found")
	ErrInvalidResponseShape = errors.New("invalid response shape")
	ErrAPI                  = errors.New("api error")
	ErrNetworkUnreachable   = errors.New("network unreachable")
)

// ModelNotFoundError is returned when a model id does not resolve to
// exactly one catalog entry.
type ModelNotFoundError struct {
	ModelID string
	Reason  string // "unknown" or "ambiguous"
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %q (%s)", e.ModelID, e.Reason)
}

func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// APIError is a non-2xx provider response. Body holds the response text.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: API error (%d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// NetworkError wraps a transport failure reaching a provider host.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network unreachable: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetworkUnreachable }

// StreamError reports a stream that failed after some text was decoded.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
