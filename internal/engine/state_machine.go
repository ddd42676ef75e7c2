package engine

import "sync"

type State string

type Event string

const (
	StateIdle    State = "IDLE"
	StateHolding State = "HOLDING"
)

const (
	EventOpened Event = "OPENED"
	EventClosed Event = "CLOSED"
)

type StateMachine struct {
	mu    sync.Mutex
	state State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateIdle}
}

func (s *StateMachine) Apply(event Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nextState(s.state, event)
	return s.state
}

func (s *StateMachine) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StateMachine) SetState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func nextState(current State, event Event) State {
	switch current {
	case StateIdle:
		if event == EventOpened {
			return StateHolding
		}
	case StateHolding:
		if event == EventClosed {
			return StateIdle
		}
	}
	return current
}
