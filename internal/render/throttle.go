package render

import (
	"strings"
	"sync"
	"time"

	"github.com/sarega/promptprim/internal/turn"
)

// ThrottleConfig controls when buffered updates are forwarded.
type ThrottleConfig struct {
	// MinInterval is the shortest gap between forwarded updates.
	// Default: 100ms.
	MinInterval time.Duration

	// MaxPendingBytes forwards at once when the unsent text reaches this
	// size. Default: 300 bytes.
	MaxPendingBytes int
}

// Throttle coalesces partial updates so a remote client receives the
// latest buffer at natural text boundaries or at a bounded rate rather
// than on every fragment. Final updates are always forwarded at once.
type Throttle struct {
	cfg ThrottleConfig
	out turn.Publisher

	mu      sync.Mutex
	pending *turn.Update
	sentLen int
	last    time.Time
	timer   *time.Timer
}

// NewThrottle creates a throttle forwarding to out.
func NewThrottle(cfg ThrottleConfig, out turn.Publisher) *Throttle {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 100 * time.Millisecond
	}
	if cfg.MaxPendingBytes <= 0 {
		cfg.MaxPendingBytes = 300
	}
	return &Throttle{cfg: cfg, out: out}
}

// Publish accepts an update. It satisfies turn.Publisher.
func (t *Throttle) Publish(u turn.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil && t.pending.Epoch != u.Epoch {
		t.pending = nil
		t.sentLen = 0
	}
	if u.Final {
		t.stopTimerLocked()
		t.pending = nil
		t.sendLocked(u)
		t.sentLen = 0
		return
	}

	t.pending = &u
	unsent := ""
	if t.sentLen <= len(u.Buffer) {
		unsent = u.Buffer[t.sentLen:]
	}
	switch {
	case len(unsent) >= t.cfg.MaxPendingBytes,
		strings.Contains(unsent, "\n\n"),
		lastSentenceEnd(unsent) > 0,
		time.Since(t.last) >= t.cfg.MinInterval:
		t.flushLocked()
	case t.timer == nil:
		t.timer = time.AfterFunc(t.cfg.MinInterval, t.Flush)
	}
}

// Flush forwards any pending update.
func (t *Throttle) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushLocked()
}

func (t *Throttle) flushLocked() {
	t.stopTimerLocked()
	if t.pending == nil {
		return
	}
	u := *t.pending
	t.pending = nil
	t.sendLocked(u)
	t.sentLen = len(u.Buffer)
}

func (t *Throttle) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle) sendLocked(u turn.Update) {
	t.out(u)
	t.last = time.Now()
}

// lastSentenceEnd returns the byte position just past the last sentence-ending
// punctuation (. ! ?) that is followed by a space or newline. Returns -1 if no
// suitable boundary is found or the text is too small (< 40 bytes).
func lastSentenceEnd(s string) int {
	best := -1
	for i := 0; i < len(s)-1; i++ {
		if (s[i] == '.' || s[i] == '!' || s[i] == '?') &&
			(s[i+1] == ' ' || s[i+1] == '\n') {
			best = i + 1
		}
	}
	if best > 40 {
		return best
	}
	return -1
}
