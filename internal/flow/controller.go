// Package flow implements the group turn-taking state machine: who
// speaks next, when a round ends, and when the conversation stops.
package flow

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/logging"
)

// Roster reports whether an agent still exists. Members missing from
// the roster are treated as absent from the group.
type Roster interface {
	Has(name string) bool
}

// RosterFunc adapts a function to Roster.
type RosterFunc func(name string) bool

func (f RosterFunc) Has(name string) bool { return f(name) }

// Controller drives one conversation through the group flow. It is
// safe for concurrent use, but callers are expected to drive it from a
// single goroutine and only call Cancel from elsewhere.
type Controller struct {
	mu       sync.Mutex
	group    domain.Group
	roster   Roster
	state    State
	cursor   Cursor
	speaker  string
	reason   StopReason
	stopErr  error
	deadline time.Time
	modRuns  int
	now      func() time.Time
	log      *logging.Logger
}

// NewController creates an idle controller for group.
func NewController(group domain.Group, roster Roster, log *logging.Logger) *Controller {
	if group.MaxTurns < domain.MinMaxTurns {
		group.MaxTurns = domain.MinMaxTurns
	}
	return &Controller{
		group:  group,
		roster: roster,
		now:    time.Now,
		log:    log.Sub("flow").With("group", group.Name),
	}
}

// SetClock replaces the time source.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Group returns the group definition.
func (c *Controller) Group() domain.Group { return c.group }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cursor returns a copy of the turn cursor.
func (c *Controller) Cursor() Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Speaker returns the selected or generating speaker.
func (c *Controller) Speaker() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaker
}

// StopReason returns why the controller stopped, if it did.
func (c *Controller) StopReason() StopReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Err returns the error recorded with the stop, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopErr
}

// Members returns the group members still present in the roster.
func (c *Controller) Members() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeMembers()
}

func (c *Controller) activeMembers() []string {
	out := make([]string, 0, len(c.group.Members))
	for _, m := range c.group.Members {
		if c.roster == nil || c.roster.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func (c *Controller) active(name string) bool {
	return slices.Contains(c.group.Members, name) && (c.roster == nil || c.roster.Has(name))
}

// Reset returns to Idle with a fresh cursor, as when a session loads.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Controller) reset() {
	c.state = Idle
	c.cursor = Cursor{}
	c.speaker = ""
	c.reason = StopNone
	c.stopErr = nil
	c.deadline = time.Time{}
	c.modRuns = 0
}

func (c *Controller) transition(to State) {
	c.log.Debug().Str("from", c.state.String()).Str("to", to.String()).Str("speaker", c.speaker).Msg("flow transition")
	c.state = to
}

func (c *Controller) stop(reason StopReason, err error) State {
	c.reason = reason
	c.stopErr = err
	c.cursor.RoundActive = false
	c.transition(Stopped)
	ev := c.log.Info().Str("reason", string(reason))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("flow stopped")
	return Stopped
}

// Select picks the next speaker in manual flow.
func (c *Controller) Select(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.group.Flow != domain.FlowManual {
		return fmt.Errorf("%w: select in %s flow", ErrInvalidTransition, c.group.Flow)
	}
	switch c.state {
	case Idle, TurnComplete, RoundComplete, Stopped:
	default:
		return fmt.Errorf("%w: select while %s", ErrInvalidTransition, c.state)
	}
	if !c.active(name) {
		return fmt.Errorf("%w: %q", ErrUnknownMember, name)
	}
	c.reason = StopNone
	c.stopErr = nil
	c.speaker = name
	c.cursor.CurrentSpeakerIndex = slices.Index(c.group.Members, name)
	c.transition(SpeakerSelected)
	return nil
}

// StartRound begins a group turn in roundRobin or autoModerator flow.
// Round robin selects the first active member. Auto moderator waits in
// Idle for the first moderator decision, or stops at once if the
// moderator is no longer valid.
func (c *Controller) StartRound() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Idle, RoundComplete, Stopped:
	default:
		return c.state, fmt.Errorf("%w: start round while %s", ErrInvalidTransition, c.state)
	}

	switch c.group.Flow {
	case domain.FlowRoundRobin:
		c.reset()
		c.cursor.RoundActive = true
		idx, ok := c.nextActiveFrom(0)
		if !ok {
			return c.stop(StopNoMembers, nil), nil
		}
		c.cursor.CurrentSpeakerIndex = idx
		c.speaker = c.group.Members[idx]
		c.transition(SpeakerSelected)
		return c.state, nil

	case domain.FlowAutoModerator:
		c.reset()
		c.cursor.RoundActive = true
		if c.group.TimerSeconds > 0 {
			c.deadline = c.now().Add(time.Duration(c.group.TimerSeconds) * time.Second)
		}
		if !c.active(c.group.Moderator) {
			return c.stop(StopModeratorMissing, fmt.Errorf("%w: moderator %q unavailable", ErrModeratorChoiceInvalid, c.group.Moderator)), nil
		}
		return c.state, nil

	default:
		return c.state, fmt.Errorf("%w: rounds do not apply to %s flow", ErrInvalidTransition, c.group.Flow)
	}
}

// nextActiveFrom returns the first active member index at or after i.
func (c *Controller) nextActiveFrom(i int) (int, bool) {
	for ; i < len(c.group.Members); i++ {
		if c.active(c.group.Members[i]) {
			return i, true
		}
	}
	return 0, false
}

// BeginGeneration marks the selected speaker as generating.
func (c *Controller) BeginGeneration() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != SpeakerSelected {
		return fmt.Errorf("%w: begin generation while %s", ErrInvalidTransition, c.state)
	}
	c.transition(Generating)
	return nil
}

// CompleteTurn marks the current generation as finished.
func (c *Controller) CompleteTurn() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Generating {
		return fmt.Errorf("%w: complete turn while %s", ErrInvalidTransition, c.state)
	}
	c.transition(TurnComplete)
	return nil
}

// Advance decides what follows a completed turn.
//
// Manual flow returns to Idle. Round robin moves to the next active
// member, counting a completed pass each time the order wraps, and ends
// the round once maxTurns passes are done. Auto moderator stays in
// TurnComplete while another moderator decision is allowed and stops
// otherwise.
func (c *Controller) Advance() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != TurnComplete {
		return c.state, fmt.Errorf("%w: advance while %s", ErrInvalidTransition, c.state)
	}

	switch c.group.Flow {
	case domain.FlowManual:
		c.speaker = ""
		c.transition(Idle)

	case domain.FlowRoundRobin:
		idx, ok := c.nextActiveFrom(c.cursor.CurrentSpeakerIndex + 1)
		if !ok {
			c.cursor.TurnsCompletedInRound++
			if c.cursor.TurnsCompletedInRound >= c.group.MaxTurns {
				c.cursor.RoundActive = false
				c.speaker = ""
				c.transition(RoundComplete)
				return c.state, nil
			}
			idx, ok = c.nextActiveFrom(0)
			if !ok {
				return c.stop(StopNoMembers, nil), nil
			}
		}
		c.cursor.CurrentSpeakerIndex = idx
		c.speaker = c.group.Members[idx]
		c.transition(SpeakerSelected)

	case domain.FlowAutoModerator:
		c.speaker = ""
		if reason, ok := c.moderatorBlocked(); ok {
			return c.stop(reason, nil), nil
		}
	}
	return c.state, nil
}

// moderatorBlocked reports whether another moderator decision is
// disallowed by the timer bound.
func (c *Controller) moderatorBlocked() (StopReason, bool) {
	if c.group.TimerSeconds == 0 {
		if c.modRuns > 0 {
			return StopRunOnce, true
		}
		return StopNone, false
	}
	if !c.now().Before(c.deadline) {
		return StopTimer, true
	}
	return StopNone, false
}

// NeedsModerator reports whether the controller is waiting for a
// moderator decision.
func (c *Controller) NeedsModerator() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.group.Flow != domain.FlowAutoModerator || !c.cursor.RoundActive {
		return false
	}
	if c.state != Idle && c.state != TurnComplete {
		return false
	}
	_, blocked := c.moderatorBlocked()
	return !blocked
}

// ApplyModeratorChoice validates raw moderator output against the
// active members. A valid name selects that speaker; an end token or
// anything unparseable stops the flow. It never substitutes a member.
func (c *Controller) ApplyModeratorChoice(raw string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.group.Flow != domain.FlowAutoModerator {
		return c.state, fmt.Errorf("%w: moderator choice in %s flow", ErrInvalidTransition, c.group.Flow)
	}
	if !c.cursor.RoundActive || (c.state != Idle && c.state != TurnComplete) {
		return c.state, fmt.Errorf("%w: moderator choice while %s", ErrInvalidTransition, c.state)
	}
	if reason, blocked := c.moderatorBlocked(); blocked {
		return c.stop(reason, nil), nil
	}
	c.modRuns++

	if !c.active(c.group.Moderator) {
		return c.stop(StopModeratorMissing, fmt.Errorf("%w: moderator %q unavailable", ErrModeratorChoiceInvalid, c.group.Moderator)), nil
	}
	name, end, err := ParseModeratorChoice(raw, c.activeMembers())
	if err != nil {
		return c.stop(StopModeratorInvalid, err), nil
	}
	if end {
		return c.stop(StopModeratorEnded, nil), nil
	}
	c.speaker = name
	c.cursor.CurrentSpeakerIndex = slices.Index(c.group.Members, name)
	c.transition(SpeakerSelected)
	return c.state, nil
}

// ModeratorFailed stops the flow after the moderator turn itself failed.
func (c *Controller) ModeratorFailed(err error) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop(StopModeratorInvalid, fmt.Errorf("%w: %v", ErrModeratorChoiceInvalid, err))
}

// Abort stops the flow after a turn failed with err.
func (c *Controller) Abort(err error) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop(StopTurnFailed, err)
}

// Cancel stops the flow from any state.
func (c *Controller) Cancel() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopped {
		return c.state
	}
	return c.stop(StopCancelled, nil)
}

// Snapshot is a serializable view of the controller.
type Snapshot struct {
	Group   string     `json:"group"`
	Flow    string     `json:"flow"`
	State   State      `json:"state"`
	Speaker string     `json:"speaker,omitempty"`
	Cursor  Cursor     `json:"cursor"`
	Reason  StopReason `json:"reason,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Snapshot returns the current controller view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Group:   c.group.Name,
		Flow:    string(c.group.Flow),
		State:   c.state,
		Speaker: c.speaker,
		Cursor:  c.cursor,
		Reason:  c.reason,
	}
	if c.stopErr != nil {
		s.Error = c.stopErr.Error()
	}
	return s
}
