package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/logging"
	"github.com/sarega/promptprim/internal/turn"
)

var (
	// ErrNothingToSummarize is returned when no message falls between
	// the active summary and the kept tail.
	ErrNothingToSummarize = errors.New("nothing to summarize")

	// ErrEmptySummary is returned when the utility agent answers with
	// no text.
	ErrEmptySummary = errors.New("utility agent returned an empty summary")
)

// Runner executes a turn. *turn.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, req turn.Request) (*turn.Result, error)
}

// Summarizer asks a utility agent to condense the older part of a
// conversation.
type Summarizer struct {
	runner     Runner
	agent      domain.Agent
	prompt     string
	keepRecent int
	now        func() time.Time
	log        *logging.Logger
}

// NewSummarizer creates a summarizer. keepRecent messages at the end
// of the history are always left verbatim.
func NewSummarizer(runner Runner, agent domain.Agent, prompt string, keepRecent int, log *logging.Logger) *Summarizer {
	if keepRecent < 0 {
		keepRecent = 0
	}
	return &Summarizer{
		runner:     runner,
		agent:      agent,
		prompt:     prompt,
		keepRecent: keepRecent,
		now:        time.Now,
		log:        log.Sub("summary"),
	}
}

// Agent returns the utility agent name.
func (s *Summarizer) Agent() string { return s.agent.Name }

// Range returns the prefix [0, to) a new summary would replace. A new
// summary always starts at the beginning and folds in the previous one,
// so it must extend past the previous record's end.
func Range(historyLen int, prev *domain.SummaryRecord, keepRecent int) (from, to int, err error) {
	to = historyLen - keepRecent
	start := 0
	if prev != nil && prev.Covers() {
		start = prev.ToIndex
	}
	if to <= start {
		return 0, 0, ErrNothingToSummarize
	}
	return 0, to, nil
}

// Summarize produces a record replacing the older part of history. prev
// is the active summary, if any; its content is carried forward.
func (s *Summarizer) Summarize(ctx context.Context, sessionID string, history []domain.Message, prev *domain.SummaryRecord) (*domain.SummaryRecord, error) {
	from, to, err := Range(len(history), prev, s.keepRecent)
	if err != nil {
		return nil, err
	}
	start := from
	if prev != nil && prev.Covers() {
		start = prev.ToIndex
	}

	input := s.prompt + "\n\n" + Transcript(prev, history[start:to])
	req := turn.Request{
		Agent:   s.agent,
		History: []domain.Message{domain.NewText(domain.RoleUser, "", input)},
	}

	log := s.log.With("session", sessionID)
	log.Info().Int("from", from).Int("to", to).Str("agent", s.agent.Name).Msg("summarizing history")

	res, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("summarizing with %s: %w", s.agent.Name, err)
	}
	if res.Cancelled {
		return nil, fmt.Errorf("summarizing with %s: %w", s.agent.Name, context.Canceled)
	}
	content := strings.TrimSpace(res.Text)
	if content == "" {
		return nil, ErrEmptySummary
	}

	rec := &domain.SummaryRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		FromIndex: from,
		ToIndex:   to,
		Content:   content,
		Agent:     s.agent.Name,
		CreatedAt: s.now().UTC(),
	}
	log.Info().Str("summary", rec.ID).Int("chars", len(content)).Msg("summary created")
	return rec, nil
}

// Transcript renders messages as plain "Speaker: text" lines, preceded
// by the previous summary when there is one.
func Transcript(prev *domain.SummaryRecord, msgs []domain.Message) string {
	var b strings.Builder
	if prev != nil && prev.Covers() {
		b.WriteString("Earlier summary:\n")
		b.WriteString(prev.Content)
		b.WriteString("\n\n")
	}
	for _, m := range msgs {
		b.WriteString(label(m))
		b.WriteString(": ")
		b.WriteString(m.Text())
		for _, img := range m.Images() {
			b.WriteString(" [image: ")
			b.WriteString(shortURL(img))
			b.WriteString("]")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func label(m domain.Message) string {
	if m.Speaker != "" {
		return m.Speaker
	}
	switch m.Role {
	case domain.RoleUser:
		return "User"
	case domain.RoleSystem:
		return "System"
	default:
		return "Assistant"
	}
}

func shortURL(u string) string {
	if strings.HasPrefix(u, "data:") {
		if i := strings.IndexByte(u, ','); i > 0 {
			return u[:i]
		}
	}
	return u
}
