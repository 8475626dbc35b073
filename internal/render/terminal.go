// Package render turns turn updates into output: incremental terminal
// text, or throttled update streams for remote clients.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sarega/promptprim/internal/turn"
)

// Terminal prints streamed turns to a writer. Each update carries the
// whole buffer so far; only the part not yet printed is written.
// Updates from an older epoch than the newest seen are ignored.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	epoch   uint64
	speaker string
	printed string
	open    bool
}

// NewTerminal creates a renderer writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Publish renders u. It satisfies turn.Publisher.
func (t *Terminal) Publish(u turn.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Epoch < t.epoch {
		return
	}
	if u.Epoch != t.epoch || u.Speaker != t.speaker || !t.open {
		if t.open {
			fmt.Fprintln(t.w)
		}
		t.epoch = u.Epoch
		t.speaker = u.Speaker
		t.printed = ""
		t.open = true
		if u.Speaker != "" {
			fmt.Fprintf(t.w, "%s: ", u.Speaker)
		}
	}

	if strings.HasPrefix(u.Buffer, t.printed) {
		io.WriteString(t.w, u.Buffer[len(t.printed):])
	} else {
		// The buffer was rewritten; start the line over.
		fmt.Fprintf(t.w, "\n%s: %s", u.Speaker, u.Buffer)
	}
	t.printed = u.Buffer

	if u.Final {
		fmt.Fprintln(t.w)
		t.open = false
	}
}

// Close terminates a line left open by a turn that never sent a final
// update.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		fmt.Fprintln(t.w)
		t.open = false
	}
}
