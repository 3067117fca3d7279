package entities

import "testing"

func TestTerminalStates(t *testing.T) {
	terminal := map[State]bool{
		StateReceived:   false,
		StateInProgress: false,
		StateSuccess:    true,
		StateFailed:     true,
		StatePending:    false,
		StateUnknown:    true,
	}
	for state, want := range terminal {
		if state.Terminal() != want {
			t.Fatalf("%s: Terminal() = %v, want %v", state, state.Terminal(), want)
		}
	}
}

func TestTransitionGraphIsForwardOnly(t *testing.T) {
	allowed := map[State][]State{
		StateReceived:   {StateInProgress},
		StateInProgress: {StateSuccess, StateFailed, StatePending},
		StatePending:    {StateSuccess, StateFailed, StatePending, StateUnknown},
		StateSuccess:    {},
		StateFailed:     {},
		StateUnknown:    {},
	}
	all := []State{StateReceived, StateInProgress, StateSuccess, StateFailed, StatePending, StateUnknown}

	for from, nexts := range allowed {
		permitted := make(map[State]bool, len(nexts))
		for _, next := range nexts {
			permitted[next] = true
		}
		for _, to := range all {
			if from.CanTransitionTo(to) != permitted[to] {
				t.Fatalf("%s -> %s: CanTransitionTo = %v, want %v", from, to, from.CanTransitionTo(to), permitted[to])
			}
		}
	}
}
