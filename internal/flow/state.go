package flow

import "errors"

// State is a Controller state.
type State int

const (
	Idle State = iota
	SpeakerSelected
	Generating
	TurnComplete
	RoundComplete
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SpeakerSelected:
		return "speakerSelected"
	case Generating:
		return "generating"
	case TurnComplete:
		return "turnComplete"
	case RoundComplete:
		return "roundComplete"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StopReason says why a controller reached Stopped.
type StopReason string

const (
	StopNone             StopReason = ""
	StopCancelled        StopReason = "cancelled"
	StopModeratorEnded   StopReason = "moderatorEnded"
	StopModeratorInvalid StopReason = "moderatorInvalid"
	StopModeratorMissing StopReason = "moderatorUnavailable"
	StopRunOnce          StopReason = "moderatorRanOnce"
	StopTimer            StopReason = "timerElapsed"
	StopNoMembers        StopReason = "noMembers"
	StopTurnFailed       StopReason = "turnFailed"
)

var (
	// ErrModeratorChoiceInvalid is recorded when the moderator output does
	// not name a current member or the end token.
	ErrModeratorChoiceInvalid = errors.New("moderator choice invalid")

	// ErrInvalidTransition is returned when an operation does not apply
	// to the current state or flow.
	ErrInvalidTransition = errors.New("invalid flow transition")

	// ErrUnknownMember is returned when selecting someone outside the
	// active member list.
	ErrUnknownMember = errors.New("not an active group member")
)

// Cursor is the transient turn position of a conversation.
type Cursor struct {
	CurrentSpeakerIndex   int  `json:"currentSpeakerIndex"`
	TurnsCompletedInRound int  `json:"turnsCompletedInRound"`
	RoundActive           bool `json:"roundActive"`
}
