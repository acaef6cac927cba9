package pipeline

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition marks a state transition outside the machine's edges.
var ErrIllegalTransition = errors.New("illegal state transition")

// State is one phase of a pipeline run.
type State int

// Pipeline run states. Completed and Failed are terminal; a new run always
// starts fresh from Idle.
const (
	StateIdle State = iota
	StateExtracting
	StateNormalizing
	StateValidating
	StateDeduplicating
	StateWriting
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateExtracting:    "extracting",
	StateNormalizing:   "normalizing",
	StateValidating:    "validating",
	StateDeduplicating: "deduplicating",
	StateWriting:       "writing",
	StateCompleted:     "completed",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// transitions lists the legal forward edges. Failed is reachable from every
// non-terminal state and handled separately in transition.
var transitions = map[State]State{
	StateIdle:          StateExtracting,
	StateExtracting:    StateNormalizing,
	StateNormalizing:   StateValidating,
	StateValidating:    StateDeduplicating,
	StateDeduplicating: StateWriting,
	StateWriting:       StateCompleted,
}

func (p *Pipeline) transition(to State) error {
	if to == StateFailed {
		if p.state.Terminal() {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, p.state, to)
		}

		p.state = StateFailed

		return nil
	}

	if transitions[p.state] != to {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, p.state, to)
	}

	p.state = to

	return nil
}
