package pipeline

import (
	"errors"
	"testing"
)

func TestTransition_LegalChain(t *testing.T) {
	p := &Pipeline{state: StateIdle}

	chain := []State{
		StateExtracting,
		StateNormalizing,
		StateValidating,
		StateDeduplicating,
		StateWriting,
		StateCompleted,
	}

	for _, next := range chain {
		if err := p.transition(next); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}

		if p.State() != next {
			t.Fatalf("state = %s, want %s", p.State(), next)
		}
	}
}

func TestTransition_SkippingStageIsIllegal(t *testing.T) {
	p := &Pipeline{state: StateIdle}

	if err := p.transition(StateValidating); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	if p.State() != StateIdle {
		t.Errorf("state changed on illegal transition: %s", p.State())
	}
}

func TestTransition_BackwardIsIllegal(t *testing.T) {
	p := &Pipeline{state: StateValidating}

	if err := p.transition(StateExtracting); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestTransition_FailedReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []State{
		StateIdle,
		StateExtracting,
		StateNormalizing,
		StateValidating,
		StateDeduplicating,
		StateWriting,
	} {
		p := &Pipeline{state: from}
		if err := p.transition(StateFailed); err != nil {
			t.Errorf("transition %s -> failed: %v", from, err)
		}
	}
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, from := range []State{StateCompleted, StateFailed} {
		p := &Pipeline{state: from}

		if err := p.transition(StateFailed); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("transition %s -> failed should be illegal, got %v", from, err)
		}

		if err := p.transition(StateExtracting); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("transition %s -> extracting should be illegal, got %v", from, err)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	if StateIdle.Terminal() || StateWriting.Terminal() {
		t.Error("non-terminal states reported terminal")
	}

	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Error("terminal states not reported terminal")
	}
}

func TestState_String(t *testing.T) {
	if StateDeduplicating.String() != "deduplicating" {
		t.Errorf("String = %q", StateDeduplicating.String())
	}

	if State(99).String() != "state(99)" {
		t.Errorf("unknown state String = %q", State(99).String())
	}
}
