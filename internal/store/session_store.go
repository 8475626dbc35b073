package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sarega/promptprim/internal/domain"
)

// timeFormat keeps sub-second precision so ordering by text is stable.
const timeFormat = time.RFC3339Nano

// SQLiteSessionStore implements agent.SessionStore backed by SQLite.
type SQLiteSessionStore struct {
	db *DB
}

// NewSQLiteSessionStore creates a session store using the given database.
func NewSQLiteSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		t, _ = time.Parse(time.DateTime, s)
	}
	return t
}

// Create starts a new session.
func (s *SQLiteSessionStore) Create(name, group string) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := domain.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Group:     group,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO sessions (id, name, group_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Group, formatTime(now), formatTime(now),
	)
	if err != nil {
		s.db.log.Error().Err(err).Msg("failed to create session")
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &sess, nil
}

// Get returns a session by ID.
func (s *SQLiteSessionStore) Get(id string) (*domain.Session, error) {
	var sess domain.Session
	var createdAt, updatedAt string
	err := s.db.sql.QueryRow(
		`SELECT id, name, group_name, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Name, &sess.Group, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	return &sess, nil
}

// List returns all sessions, most recently updated first.
func (s *SQLiteSessionStore) List() ([]domain.Session, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, name, group_name, created_at, updated_at FROM sessions ORDER BY updated_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var sess domain.Session
		var createdAt, updatedAt string
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.Group, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.CreatedAt = parseTime(createdAt)
		sess.UpdatedAt = parseTime(updatedAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Append adds a message to the end of a session's history.
func (s *SQLiteSessionStore) Append(sessionID string, msg domain.Message) (domain.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	var parts sql.NullString
	if msg.IsMultipart() {
		data, err := json.Marshal(msg.Parts)
		if err != nil {
			return domain.Message{}, fmt.Errorf("encoding message parts: %w", err)
		}
		parts = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return domain.Message{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		formatTime(time.Now()), sessionID,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("touching session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Message{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	// Multipart messages index their text parts.
	_, err = tx.Exec(
		`INSERT INTO messages (id, session_id, role, speaker, content, parts, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Speaker, msg.Text(), parts, formatTime(msg.Timestamp),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to append message")
		return domain.Message{}, fmt.Errorf("appending message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

// History returns the full message history of a session in order.
func (s *SQLiteSessionStore) History(sessionID string) ([]domain.Message, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.sql.Query(
		`SELECT id, role, speaker, content, parts, timestamp
		 FROM messages WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner, extra ...any) (domain.Message, error) {
	var msg domain.Message
	var role, ts string
	var parts sql.NullString
	dest := append([]any{&msg.ID, &role, &msg.Speaker, &msg.Content, &parts, &ts}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Message{}, fmt.Errorf("scanning message: %w", err)
	}
	msg.Role = domain.Role(role)
	msg.Timestamp = parseTime(ts)
	if parts.Valid && parts.String != "" {
		if err := json.Unmarshal([]byte(parts.String), &msg.Parts); err != nil {
			return domain.Message{}, fmt.Errorf("decoding parts of %s: %w", msg.ID, err)
		}
		msg.Content = ""
	}
	return msg, nil
}

// SetSummary makes rec the only active summary of its session.
func (s *SQLiteSessionStore) SetSummary(rec domain.SummaryRecord) error {
	if !rec.Covers() || rec.FromIndex < 0 {
		return fmt.Errorf("invalid summary range [%d,%d)", rec.FromIndex, rec.ToIndex)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin summary: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, rec.SessionID).Scan(&count); err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}
	if rec.ToIndex > count {
		return fmt.Errorf("summary range [%d,%d) outside history of %d messages", rec.FromIndex, rec.ToIndex, count)
	}
	if _, err := tx.Exec(`UPDATE summaries SET active = 0 WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("deactivating summaries: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO summaries (id, session_id, from_index, to_index, content, agent, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		rec.ID, rec.SessionID, rec.FromIndex, rec.ToIndex, rec.Content, rec.Agent, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	return tx.Commit()
}

// ActiveSummary returns the active summary, or nil when none is active.
func (s *SQLiteSessionStore) ActiveSummary(sessionID string) (*domain.SummaryRecord, error) {
	var rec domain.SummaryRecord
	var createdAt string
	err := s.db.sql.QueryRow(
		`SELECT id, session_id, from_index, to_index, content, agent, created_at
		 FROM summaries WHERE session_id = ? AND active = 1
		 ORDER BY created_at DESC LIMIT 1`, sessionID,
	).Scan(&rec.ID, &rec.SessionID, &rec.FromIndex, &rec.ToIndex, &rec.Content, &rec.Agent, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading summary: %w", err)
	}
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

// ClearSummary deactivates the active summary. Past summaries are kept
// for Summaries.
func (s *SQLiteSessionStore) ClearSummary(sessionID string) (bool, error) {
	res, err := s.db.sql.Exec(`UPDATE summaries SET active = 0 WHERE session_id = ? AND active = 1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("clearing summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Summaries returns every summary ever made for a session, newest first.
func (s *SQLiteSessionStore) Summaries(sessionID string) ([]domain.SummaryRecord, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, session_id, from_index, to_index, content, agent, created_at
		 FROM summaries WHERE session_id = ? ORDER BY created_at DESC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	defer rows.Close()

	var out []domain.SummaryRecord
	for rows.Next() {
		var rec domain.SummaryRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.FromIndex, &rec.ToIndex, &rec.Content, &rec.Agent, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
