package rules

import (
	"fmt"
)

// Status is the lifecycle stage of a match. It only moves forward.
type Status int

const (
	StatusSetup Status = iota
	StatusBusy
	StatusDone
)

var statusNames = map[Status]string{
	StatusSetup: "SETUP",
	StatusBusy:  "BUSY",
	StatusDone:  "DONE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", int(s))
}

// ParseStatus converts a stored status name back into a Status.
func ParseStatus(value string) (Status, error) {
	for status, name := range statusNames {
		if name == value {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", value)
}

// NextStatus returns the status following s. ok is false when s is terminal.
func NextStatus(s Status) (next Status, ok bool) {
	switch s {
	case StatusSetup:
		return StatusBusy, true
	case StatusBusy:
		return StatusDone, true
	}
	return s, false
}

// Phase is a stage of a single player's turn.
type Phase int

const (
	PhaseDraw Phase = iota
	PhaseMain
	PhaseDebate
	PhaseUpkeep
)

var phaseNames = map[Phase]string{
	PhaseDraw:   "DRAW",
	PhaseMain:   "MAIN",
	PhaseDebate: "DEBATE",
	PhaseUpkeep: "UPKEEP",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// ParsePhase converts a stored phase name back into a Phase.
func ParsePhase(value string) (Phase, error) {
	for phase, name := range phaseNames {
		if name == value {
			return phase, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", value)
}

// phaseSequence is the order phases are played in within one turn.
var phaseSequence = []Phase{PhaseDraw, PhaseMain, PhaseDebate, PhaseUpkeep}

// PhaseCount is the number of phases in one turn.
var PhaseCount = len(phaseSequence)

// NextPhase returns the phase after p. wrapped is true when the cycle starts
// over, which hands the turn to the other player.
func NextPhase(p Phase) (next Phase, wrapped bool) {
	for i, phase := range phaseSequence {
		if phase != p {
			continue
		}
		if i+1 < len(phaseSequence) {
			return phaseSequence[i+1], false
		}
		return phaseSequence[0], true
	}
	return phaseSequence[0], true
}

// IsActionPhase reports whether a player may choose to act or decline in p.
func IsActionPhase(p Phase) bool {
	return p == PhaseMain || p == PhaseDebate
}

// Turn tracks which seat acts and how many full cycles were played.
type Turn struct {
	Seat  int // 1 or 2
	Round int
	Phase Phase
}

// NewTurn starts at seat 1, round 1, draw phase.
func NewTurn() Turn {
	return Turn{Seat: 1, Round: 1, Phase: PhaseDraw}
}

// Advance moves to the next phase. On wraparound the round increments only
// when seat 2 finishes its cycle, then the seat toggles.
func (t Turn) Advance() (Turn, bool) {
	next, wrapped := NextPhase(t.Phase)
	t.Phase = next
	if wrapped {
		if t.Seat == 2 {
			t.Round++
		}
		t.Seat = OtherSeat(t.Seat)
	}
	return t, wrapped
}

// OtherSeat returns the opponent of seat.
func OtherSeat(seat int) int {
	if seat == 1 {
		return 2
	}
	return 1
}
