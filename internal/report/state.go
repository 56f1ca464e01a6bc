package report

import "fmt"

// RequestState tracks a submission through the relay. Each request walks
// the machine exactly once:
//
//	Unauthenticated -> Authenticated -> Validated -> Accepted -> Persisted
//
// with Rejected terminal after Validated and Failed terminal from any
// non-terminal state.
type RequestState int

const (
	StateUnauthenticated RequestState = iota
	StateAuthenticated
	StateValidated
	StateAccepted
	StateRejected
	StatePersisted
	StateFailed
)

func (s RequestState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateValidated:
		return "validated"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s RequestState) Terminal() bool {
	return s == StateRejected || s == StatePersisted || s == StateFailed
}

var transitions = map[RequestState][]RequestState{
	StateUnauthenticated: {StateAuthenticated, StateFailed},
	StateAuthenticated:   {StateValidated, StateFailed},
	StateValidated:       {StateAccepted, StateRejected, StateFailed},
	StateAccepted:        {StatePersisted, StateFailed},
}

// RequestTrace records the states one relay request has passed through.
type RequestTrace struct {
	states []RequestState
}

// NewRequestTrace starts a trace in StateUnauthenticated.
func NewRequestTrace() *RequestTrace {
	return &RequestTrace{states: []RequestState{StateUnauthenticated}}
}

// Current returns the state the request is in now.
func (t *RequestTrace) Current() RequestState {
	return t.states[len(t.states)-1]
}

// Transition moves the request to next, or errors if the machine does not
// allow the move.
func (t *RequestTrace) Transition(next RequestState) error {
	current := t.Current()
	for _, allowed := range transitions[current] {
		if next == allowed {
			t.states = append(t.states, next)
			return nil
		}
	}
	return fmt.Errorf("illegal request state transition %s -> %s", current, next)
}

// Path returns the states visited so far, in order.
func (t *RequestTrace) Path() []RequestState {
	out := make([]RequestState, len(t.states))
	copy(out, t.states)
	return out
}
