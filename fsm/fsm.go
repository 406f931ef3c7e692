// Package fsm implements a small table-driven finite state machine keyed
// by a (state, event) pair. Transitions are registered once at
// construction; Apply looks up the current state and an incoming event
// and, if a transition exists, runs its callback and moves to the target
// state.
package fsm

// Callback is invoked when a transition fires, before the state has
// changed: it runs with from still current and to about to become
// current.
type Callback[State comparable, Event comparable] func(from State, event Event, to State)

// Transition describes one (from, event) -> to edge, with an optional
// callback. A nil Callback is a valid no-op transition.
type Transition[State comparable, Event comparable] struct {
	From     State
	Event    Event
	To       State
	Callback Callback[State, Event]
}

type key[State comparable, Event comparable] struct {
	state State
	event Event
}

type edge[State comparable, Event comparable] struct {
	to       State
	callback Callback[State, Event]
}

// FSM is a table-driven state machine. Zero value is not usable; build
// one with New.
type FSM[State comparable, Event comparable] struct {
	initial     State
	state       State
	transitions map[key[State, Event]]edge[State, Event]
}

// New builds an FSM starting in initial, wired with transitions.
func New[State comparable, Event comparable](initial State, transitions []Transition[State, Event]) *FSM[State, Event] {
	f := &FSM[State, Event]{
		initial:     initial,
		state:       initial,
		transitions: make(map[key[State, Event]]edge[State, Event], len(transitions)),
	}
	for _, t := range transitions {
		f.transitions[key[State, Event]{t.From, t.Event}] = edge[State, Event]{to: t.To, callback: t.Callback}
	}
	return f
}

// State returns the current state.
func (f *FSM[State, Event]) State() State {
	return f.state
}

// Reset returns the machine to its initial state.
func (f *FSM[State, Event]) Reset() {
	f.state = f.initial
}

// Apply looks up a transition for (current state, event). If one
// exists, its callback (if any) runs, the state moves to the
// transition's target, and Apply returns true. If none exists, the
// state is left unchanged and Apply returns false.
func (f *FSM[State, Event]) Apply(event Event) bool {
	e, ok := f.transitions[key[State, Event]{f.state, event}]
	if !ok {
		return false
	}
	from := f.state
	if e.callback != nil {
		e.callback(from, event, e.to)
	}
	f.state = e.to
	return true
}

// CanApply reports whether event has a registered transition from the
// current state, without applying it.
func (f *FSM[State, Event]) CanApply(event Event) bool {
	_, ok := f.transitions[key[State, Event]{f.state, event}]
	return ok
}
