package models

import (
	"fmt"
	"time"
)

// Side classifies the price relative to a specific SMA value.
type Side int

const (
	// SideUnknown means no prior observation exists to compare against.
	// It is the only valid initial value and is never re-entered once a
	// real side has been observed, short of a full state reset.
	SideUnknown Side = iota
	SideAbove
	SideBelow
)

func (s Side) String() string {
	switch s {
	case SideAbove:
		return "above"
	case SideBelow:
		return "below"
	default:
		return "unknown"
	}
}

// ParseSide converts a stored string back into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "above":
		return SideAbove, nil
	case "below":
		return SideBelow, nil
	case "unknown":
		return SideUnknown, nil
	default:
		return SideUnknown, fmt.Errorf("unrecognized side %q", s)
	}
}

// Direction is the direction of a crossover.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}
	return "down"
}

// ParseDirection converts a stored string back into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	default:
		return DirectionUp, fmt.Errorf("unrecognized direction %q", s)
	}
}

// CrossoverEvent records the price strictly flipping from one known side of
// an SMA to the opposite known side. Events are consumed once by the
// dispatcher and discarded; they are never replayed.
type CrossoverEvent struct {
	Period    int
	Direction Direction
	Price     float64
	SMAValue  float64
	Timestamp time.Time
}

// CrossoverState maps SMA period to the last known side of price relative
// to that period's SMA. Exactly one entry per configured period at all
// times. Owned by the monitoring loop; replaced wholesale each cycle.
type CrossoverState map[int]Side

// NewCrossoverState returns a state with every period set to SideUnknown.
func NewCrossoverState(periods []int) CrossoverState {
	state := make(CrossoverState, len(periods))
	for _, p := range periods {
		state[p] = SideUnknown
	}
	return state
}

// Clone returns an independent copy of the state.
func (s CrossoverState) Clone() CrossoverState {
	next := make(CrossoverState, len(s))
	for period, side := range s {
		next[period] = side
	}
	return next
}

// Complete reports whether the state has exactly one entry per period.
func (s CrossoverState) Complete(periods []int) bool {
	if len(s) != len(periods) {
		return false
	}
	for _, p := range periods {
		if _, ok := s[p]; !ok {
			return false
		}
	}
	return true
}
