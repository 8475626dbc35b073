package llm

import (
	"bytes"
	"encoding/json"

	"github.com/sarega/promptprim/internal/domain"
)

// Framing interprets complete lines of a streaming response body.
type Framing interface {
	// Kind returns the provider kind this framing belongs to.
	Kind() domain.ProviderKind

	// DecodeLine inspects one line without its trailing newline. ok is
	// false when the line carries no payload (blank, keep-alive,
	// malformed, or missing the expected field). done reports the
	// end-of-stream marker.
	DecodeLine(line []byte) (delta string, done bool, ok bool)
}

// FramingFor returns the framing used by the given provider kind.
func FramingFor(kind domain.ProviderKind) Framing {
	if kind == domain.ProviderLocal {
		return ndjsonFraming{}
	}
	return sseFraming{}
}

var (
	ssePrefix   = []byte("data:")
	sseSentinel = []byte("[DONE]")
)

// sseFraming decodes server-sent events carrying chat completion chunks.
type sseFraming struct{}

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (sseFraming) Kind() domain.ProviderKind { return domain.ProviderCloud }

func (sseFraming) DecodeLine(line []byte) (string, bool, bool) {
	line = bytes.TrimRight(line, "\r")
	if !bytes.HasPrefix(line, ssePrefix) {
		return "", false, false
	}
	payload := bytes.TrimSpace(line[len(ssePrefix):])
	if bytes.Equal(payload, sseSentinel) {
		return "", true, true
	}
	var chunk sseChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", false, false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return "", false, false
	}
	return *chunk.Choices[0].Delta.Content, false, true
}

// ndjsonFraming decodes one JSON object per line.
type ndjsonFraming struct{}

type ndjsonChunk struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (ndjsonFraming) Kind() domain.ProviderKind { return domain.ProviderLocal }

func (ndjsonFraming) DecodeLine(line []byte) (string, bool, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", false, false
	}
	var chunk ndjsonChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false, false
	}
	var delta string
	hasDelta := chunk.Message != nil && chunk.Message.Content != nil
	if hasDelta {
		delta = *chunk.Message.Content
	}
	if chunk.Done {
		return delta, true, true
	}
	if !hasDelta {
		return "", false, false
	}
	return delta, false, true
}
