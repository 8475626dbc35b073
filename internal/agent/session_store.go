package agent

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sarega/promptprim/internal/domain"
)

// SessionStore persists sessions, their full message history and the
// active summary. History is append-only; a summary never deletes
// messages, it only changes what the model sees.
type SessionStore interface {
	// Create starts a new session. group may be empty for one-to-one chats.
	Create(name, group string) (*domain.Session, error)

	// Get returns a session or domain.ErrSessionNotFound.
	Get(id string) (*domain.Session, error)

	// List returns all sessions, most recently updated first.
	List() ([]domain.Session, error)

	// Append stores msg at the end of the history. It assigns an id and
	// timestamp when missing and returns the stored message.
	Append(sessionID string, msg domain.Message) (domain.Message, error)

	// History returns the full stored history in order.
	History(sessionID string) ([]domain.Message, error)

	// SetSummary makes rec the active summary of its session.
	SetSummary(rec domain.SummaryRecord) error

	// ActiveSummary returns the active summary, or nil when there is none.
	ActiveSummary(sessionID string) (*domain.SummaryRecord, error)

	// ClearSummary deactivates the active summary. It reports whether one
	// was active.
	ClearSummary(sessionID string) (bool, error)
}

// MemorySessionStore is an in-memory SessionStore implementation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
}

type memSession struct {
	meta     domain.Session
	messages []domain.Message
	summary  *domain.SummaryRecord
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*memSession)}
}

func (s *MemorySessionStore) Create(name, group string) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := domain.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Group:     group,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &memSession{meta: sess}
	return &sess, nil
}

func (s *MemorySessionStore) lookup(id string) (*memSession, error) {
	ms, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return ms, nil
}

func (s *MemorySessionStore) Get(id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess := ms.meta
	return &sess, nil
}

func (s *MemorySessionStore) List() ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, ms := range s.sessions {
		out = append(out, ms.meta)
	}
	slices.SortFunc(out, func(a, b domain.Session) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

func (s *MemorySessionStore) Append(sessionID string, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, err := s.lookup(sessionID)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	ms.messages = append(ms.messages, msg)
	ms.meta.UpdatedAt = time.Now().UTC()
	return msg, nil
}

func (s *MemorySessionStore) History(sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(ms.messages), nil
}

func (s *MemorySessionStore) SetSummary(rec domain.SummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, err := s.lookup(rec.SessionID)
	if err != nil {
		return err
	}
	if rec.ToIndex > len(ms.messages) || rec.FromIndex < 0 || !rec.Covers() {
		return fmt.Errorf("summary range [%d,%d) outside history of %d messages", rec.FromIndex, rec.ToIndex, len(ms.messages))
	}
	ms.summary = &rec
	return nil
}

func (s *MemorySessionStore) ActiveSummary(sessionID string) (*domain.SummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if ms.summary == nil {
		return nil, nil
	}
	rec := *ms.summary
	return &rec, nil
}

func (s *MemorySessionStore) ClearSummary(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, err := s.lookup(sessionID)
	if err != nil {
		return false, err
	}
	had := ms.summary != nil
	ms.summary = nil
	return had, nil
}
