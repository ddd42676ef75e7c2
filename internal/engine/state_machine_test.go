package engine

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StateIdle {
		t.Fatalf("expected initial idle, got %s", sm.Current())
	}
	if got := sm.Apply(EventOpened); got != StateHolding {
		t.Fatalf("expected holding after open, got %s", got)
	}
	if got := sm.Apply(EventClosed); got != StateIdle {
		t.Fatalf("expected idle after close, got %s", got)
	}
}

func TestStateMachineIgnoresInvalidEvents(t *testing.T) {
	sm := NewStateMachine()
	if got := sm.Apply(EventClosed); got != StateIdle {
		t.Fatalf("close in idle must be ignored, got %s", got)
	}
	sm.Apply(EventOpened)
	if got := sm.Apply(EventOpened); got != StateHolding {
		t.Fatalf("open in holding must be ignored, got %s", got)
	}
}

func TestStateMachineSetState(t *testing.T) {
	sm := NewStateMachine()
	sm.SetState(StateHolding)
	if sm.Current() != StateHolding {
		t.Fatalf("expected holding after set, got %s", sm.Current())
	}
}
