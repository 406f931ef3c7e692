package fsm

import "testing"

type connState int

const (
	stateIdle connState = iota
	stateOpening
	stateOpen
	stateClosed
)

type connEvent int

const (
	eventOpen connEvent = iota
	eventOpened
	eventClose
)

func TestApplyFollowsRegisteredTransitions(t *testing.T) {
	f := New(stateIdle, []Transition[connState, connEvent]{
		{From: stateIdle, Event: eventOpen, To: stateOpening},
		{From: stateOpening, Event: eventOpened, To: stateOpen},
		{From: stateOpen, Event: eventClose, To: stateClosed},
	})

	if !f.Apply(eventOpen) {
		t.Fatalf("expected eventOpen to apply from idle")
	}
	if f.State() != stateOpening {
		t.Fatalf("expected state opening, got %v", f.State())
	}
	if !f.Apply(eventOpened) {
		t.Fatalf("expected eventOpened to apply from opening")
	}
	if f.State() != stateOpen {
		t.Fatalf("expected state open, got %v", f.State())
	}
}

func TestApplyRejectsUnknownTransition(t *testing.T) {
	f := New(stateIdle, []Transition[connState, connEvent]{
		{From: stateIdle, Event: eventOpen, To: stateOpening},
	})
	if f.Apply(eventClose) {
		t.Fatalf("expected eventClose to be rejected from idle")
	}
	if f.State() != stateIdle {
		t.Fatalf("state must not change on a rejected event, got %v", f.State())
	}
}

func TestApplyInvokesCallbackWithFromEventTo(t *testing.T) {
	var gotFrom connState
	var gotEvent connEvent
	var gotTo connState
	f := New(stateIdle, []Transition[connState, connEvent]{
		{From: stateIdle, Event: eventOpen, To: stateOpening, Callback: func(from connState, event connEvent, to connState) {
			gotFrom, gotEvent, gotTo = from, event, to
		}},
	})

	f.Apply(eventOpen)

	if gotFrom != stateIdle || gotEvent != eventOpen || gotTo != stateOpening {
		t.Fatalf("callback args mismatch: from=%v event=%v to=%v", gotFrom, gotEvent, gotTo)
	}
}

func TestResetReturnsToInitialState(t *testing.T) {
	f := New(stateIdle, []Transition[connState, connEvent]{
		{From: stateIdle, Event: eventOpen, To: stateOpening},
	})
	f.Apply(eventOpen)
	f.Reset()
	if f.State() != stateIdle {
		t.Fatalf("expected reset to restore idle, got %v", f.State())
	}
}

func TestCanApplyDoesNotMutateState(t *testing.T) {
	f := New(stateIdle, []Transition[connState, connEvent]{
		{From: stateIdle, Event: eventOpen, To: stateOpening},
	})
	if !f.CanApply(eventOpen) {
		t.Fatalf("expected CanApply true for registered transition")
	}
	if f.CanApply(eventClose) {
		t.Fatalf("expected CanApply false for unregistered transition")
	}
	if f.State() != stateIdle {
		t.Fatalf("CanApply must not mutate state, got %v", f.State())
	}
}
