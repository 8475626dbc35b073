package store

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sarega/promptprim/internal/domain"
)

// SearchHit is a stored message matching a transcript search.
type SearchHit struct {
	SessionID string         `json:"sessionId"`
	Message   domain.Message `json:"message"`
	Snippet   string         `json:"snippet"`
	Rank      float64        `json:"rank"`
}

// Search finds messages matching query using FTS5. An empty sessionID
// searches every session. Results are ranked by relevance; a limit of 0
// defaults to 20.
func (s *SQLiteSessionStore) Search(sessionID, query string, limit int) ([]SearchHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT m.id, m.role, m.speaker, m.content, m.parts, m.timestamp, m.session_id,
	             snippet(messages_fts, 0, '[', ']', '...', 12), rank
	      FROM messages_fts
	      JOIN messages m ON m.seq = messages_fts.rowid
	      WHERE messages_fts MATCH ?`
	args := []any{match}
	if sessionID != "" {
		q += ` AND m.session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.sql.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		msg, err := scanMessage(rows, &hit.SessionID, &hit.Snippet, &hit.Rank)
		if err != nil {
			return nil, err
		}
		hit.Message = msg
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ftsQuery turns free text into an FTS5 query that matches all terms.
// Each term is quoted so operators are taken literally; terms without a
// letter or digit are dropped.
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
			continue
		}
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
