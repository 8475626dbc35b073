// Package summary decides when a conversation is compacted and produces
// the summary that replaces its older messages.
//
// Token counts here are a character heuristic (about four characters
// per token), not tokenizer output. They only drive the compaction
// threshold.
package summary

import (
	"unicode/utf8"

	"github.com/sarega/promptprim/internal/domain"
)

// CharsPerToken is the divisor of the token heuristic.
const CharsPerToken = 4

// EstimateText approximates the token count of s.
func EstimateText(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// EstimateTokens approximates the token count of msgs. Characters are
// summed before dividing so many short messages are not over-counted.
func EstimateTokens(msgs []domain.Message) int {
	chars := 0
	for _, m := range msgs {
		chars += utf8.RuneCountInString(m.Text())
	}
	return (chars + CharsPerToken - 1) / CharsPerToken
}

// View returns the history as the model sees it. With an active
// record, the replaced range collapses into one system message. The
// stored history is never modified.
func View(history []domain.Message, rec *domain.SummaryRecord) []domain.Message {
	if rec == nil || !rec.Covers() || rec.ToIndex > len(history) || rec.FromIndex < 0 {
		return history
	}
	out := make([]domain.Message, 0, len(history)-(rec.ToIndex-rec.FromIndex)+1)
	out = append(out, history[:rec.FromIndex]...)
	out = append(out, rec.Message())
	out = append(out, history[rec.ToIndex:]...)
	return out
}

// Trigger fires when the estimated size of the visible history goes
// over a threshold. It never fires during a generation. A crossing seen
// while streaming is only observed; the decision is made on the history
// of the completed turn, so a turn that fails or is superseded leaves
// nothing behind.
type Trigger struct {
	threshold int
	observed  bool
}

// NewTrigger creates a trigger. A threshold of zero or less disables it.
func NewTrigger(threshold int) *Trigger {
	return &Trigger{threshold: threshold}
}

// Threshold returns the configured threshold.
func (t *Trigger) Threshold() int { return t.threshold }

// Observe notes an in-flight estimate. It reports true only for the first
// crossing seen since the last Reset or Evaluate.
func (t *Trigger) Observe(tokens int) bool {
	if t.threshold <= 0 || t.observed || tokens <= t.threshold {
		return false
	}
	t.observed = true
	return true
}

// Reset forgets in-flight observations.
func (t *Trigger) Reset() { t.observed = false }

// Evaluate reports whether summarization should start for a completed
// view estimated at tokens. Reaching the threshold exactly does not fire.
func (t *Trigger) Evaluate(tokens int) bool {
	t.observed = false
	return t.threshold > 0 && tokens > t.threshold
}
