package pipeline

import "fmt"

// State is a stage of one daily run
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateSummarizing State = "summarizing"
	StateBuilding    State = "building"
	StateEmitting    State = "emitting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// transitions lists the forward edge of each non-terminal state. Failed is
// reachable from every non-terminal state.
var transitions = map[State]State{
	StateIdle:        StateFetching,
	StateFetching:    StateSummarizing,
	StateSummarizing: StateBuilding,
	StateBuilding:    StateEmitting,
	StateEmitting:    StateDone,
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether from -> to is a valid edge
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return transitions[from] == to
}

func validateTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	return nil
}
