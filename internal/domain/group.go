package domain

import (
	"fmt"
	"slices"
)

// FlowKind selects the group turn-taking policy.
type FlowKind string

const (
	FlowManual        FlowKind = "manual"
	FlowRoundRobin    FlowKind = "roundRobin"
	FlowAutoModerator FlowKind = "autoModerator"
)

// Valid reports whether k is a known flow.
func (k FlowKind) Valid() bool {
	switch k {
	case FlowManual, FlowRoundRobin, FlowAutoModerator:
		return true
	}
	return false
}

// Group limits.
const (
	MinMaxTurns     = 1
	MaxMaxTurns     = 8
	MaxTimerSeconds = 180
)

// Group is a named set of agents that converse under one flow.
type Group struct {
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	Moderator string   `json:"moderator,omitempty"`
	Flow      FlowKind `json:"flow"`
	MaxTurns  int      `json:"maxTurns,omitempty"`

	// TimerSeconds bounds autoModerator cycling. Zero runs the moderator once.
	TimerSeconds int `json:"timerSeconds,omitempty"`

	SummarizationTokenThreshold int `json:"summarizationTokenThreshold,omitempty"`
}

// HasMember reports whether name is listed in Members.
func (g Group) HasMember(name string) bool {
	return slices.Contains(g.Members, name)
}

// Validate checks the structural group invariants.
func (g Group) Validate() error {
	if len(g.Members) == 0 {
		return fmt.Errorf("group %q: members must not be empty", g.Name)
	}
	if !g.Flow.Valid() {
		return fmt.Errorf("group %q: unknown flow %q", g.Name, g.Flow)
	}
	if g.Moderator != "" && !g.HasMember(g.Moderator) {
		return fmt.Errorf("group %q: moderator %q is not a member", g.Name, g.Moderator)
	}
	if g.Flow == FlowAutoModerator && g.Moderator == "" {
		return fmt.Errorf("group %q: autoModerator flow requires a moderator", g.Name)
	}
	if g.Flow == FlowRoundRobin && (g.MaxTurns < MinMaxTurns || g.MaxTurns > MaxMaxTurns) {
		return fmt.Errorf("group %q: maxTurns must be between %d and %d", g.Name, MinMaxTurns, MaxMaxTurns)
	}
	if g.TimerSeconds < 0 || g.TimerSeconds > MaxTimerSeconds {
		return fmt.Errorf("group %q: timerSeconds must be between 0 and %d", g.Name, MaxTimerSeconds)
	}
	return nil
}
