package core

import "fmt"

// FlowState is a state of the login state machine.
type FlowState string

const (
	StateIdle                 FlowState = "idle"
	StateAwaitingChallenge    FlowState = "awaiting_challenge"
	StateAwaitingVerification FlowState = "awaiting_verification"
	StateAuthenticated        FlowState = "authenticated"
	StateFailed               FlowState = "failed"
)

// FlowKind distinguishes the two supported login flows.
type FlowKind string

const (
	FlowChallenge FlowKind = "challenge"
	FlowDirect    FlowKind = "direct"
)

// transitions lists the allowed moves per flow kind.
var transitions = map[FlowKind]map[FlowState][]FlowState{
	FlowChallenge: {
		StateIdle:                 {StateAwaitingChallenge},
		StateAwaitingChallenge:    {StateAwaitingVerification, StateFailed},
		StateAwaitingVerification: {StateAwaitingVerification, StateAuthenticated, StateFailed},
	},
	FlowDirect: {
		StateIdle: {StateAuthenticated, StateFailed},
	},
}

// Flow tracks one login attempt. Authenticated and Failed are terminal; a
// failed flow is restarted with a new Flow.
type Flow struct {
	Kind        FlowKind
	PrincipalID string
	State       FlowState
	Reason      error
}

// NewFlow returns a flow in Idle.
func NewFlow(kind FlowKind) *Flow {
	return &Flow{Kind: kind, State: StateIdle}
}

// ResumeFlow rebuilds a flow for principalID that is known to be in state,
// e.g. AwaitingVerification while a pending challenge is stored.
func ResumeFlow(kind FlowKind, principalID string, state FlowState) *Flow {
	return &Flow{Kind: kind, PrincipalID: principalID, State: state}
}

// To moves the flow to next. reason is recorded when next is StateFailed.
func (f *Flow) To(next FlowState, reason error) error {
	for _, allowed := range transitions[f.Kind][f.State] {
		if allowed == next {
			f.State = next
			if next == StateFailed {
				f.Reason = reason
			}
			return nil
		}
	}
	return fmt.Errorf("%s flow %s -> %s: %w", f.Kind, f.State, next, ErrInvalidTransition)
}

// Fail moves the flow to StateFailed with reason.
func (f *Flow) Fail(reason error) error {
	return f.To(StateFailed, reason)
}

// Done reports whether the flow reached a terminal state.
func (f *Flow) Done() bool {
	return f.State == StateAuthenticated || f.State == StateFailed
}
