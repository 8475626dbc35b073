package domain

import (
	"strings"
	"time"
)

// Role identifies the author class of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType classifies a content part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is one element of multimodal message content.
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"` // http(s) URL or data URL
}

// Message is a single entry in a conversation history. Content holds
// plain text; Parts, when present, takes precedence and carries an
// ordered sequence of text and image parts.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content,omitempty"`
	Parts     []Part    `json:"parts,omitempty"`
	Speaker   string    `json:"speakerName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewText returns a plain-text message stamped with the current time.
func NewText(role Role, speaker, text string) Message {
	return Message{Role: role, Content: text, Speaker: speaker, Timestamp: time.Now().UTC()}
}

// Text returns the textual content of the message. For multipart
// messages the text parts are joined with newlines.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Images returns the image references in part order.
func (m Message) Images() []string {
	var out []string
	for _, p := range m.Parts {
		if p.Type == PartImage && p.ImageURL != "" {
			out = append(out, p.ImageURL)
		}
	}
	return out
}

// IsMultipart reports whether the message carries typed parts.
func (m Message) IsMultipart() bool { return len(m.Parts) > 0 }
