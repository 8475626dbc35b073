package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned by session stores for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is a persisted conversation.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Group     string    `json:"group,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SummaryRecord describes an active history compaction. It replaces
// history[FromIndex:ToIndex] with a single system message.
type SummaryRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	FromIndex int       `json:"fromIndex"`
	ToIndex   int       `json:"toIndex"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message renders the summary as the synthetic system message that
// stands in for the replaced range.
func (s SummaryRecord) Message() Message {
	return Message{
		ID:        s.ID,
		Role:      RoleSystem,
		Content:   fmt.Sprintf("Summary of the earlier conversation:\n%s", s.Content),
		Timestamp: s.CreatedAt,
	}
}

// Covers reports whether the record replaces a non-empty range.
func (s SummaryRecord) Covers() bool { return s.ToIndex > s.FromIndex }
