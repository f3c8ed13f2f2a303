// Package ranking coordinates a recomputation run for one job: aggregate
// profiles, score them, keep relevant matches, sort, and swap the job's
// stored ranking generation.
//
// Run state graph:
//
//	IDLE ──► AGGREGATING ──► SCORING ──► FILTERING_AND_SORTING ──► PERSISTING ──► IDLE
//	              │                                                     │
//	              └──────────────────────► FAILED ◄─────────────────────┘
//
// SCORING never fails: per-candidate errors are absorbed.
package ranking

import "fmt"

// State is the phase of one recomputation run.
type State string

const (
	StateIdle        State = "IDLE"
	StateAggregating State = "AGGREGATING"
	StateScoring     State = "SCORING"
	StateFiltering   State = "FILTERING_AND_SORTING"
	StatePersisting  State = "PERSISTING"
	StateFailed      State = "FAILED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StateIdle:        {StateAggregating},
	StateAggregating: {StateScoring, StateFailed},
	StateScoring:     {StateFiltering},
	StateFiltering:   {StatePersisting},
	StatePersisting:  {StateIdle, StateFailed},
	// FAILED is terminal
}

// ParseState converts a raw string to a State.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateIdle, StateAggregating, StateScoring, StateFiltering, StatePersisting, StateFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown run state %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for FAILED.
func IsTerminal(s State) bool { return s == StateFailed }

// run tracks the state of one recomputation and rejects illegal moves.
type run struct {
	jobID string
	state State
	trail []State
}

func newRun(jobID string) *run {
	return &run{jobID: jobID, state: StateIdle, trail: []State{StateIdle}}
}

func (r *run) advance(to State) error {
	if !IsTransitionAllowed(r.state, to) {
		return fmt.Errorf("run %s: transition %s → %s is not allowed", r.jobID, r.state, to)
	}
	r.state = to
	r.trail = append(r.trail, to)
	return nil
}
