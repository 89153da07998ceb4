// Package handshake drives the OAuth redirect handshake used for social login.
//
// A handshake moves Idle → Redirecting when the user picks a provider, leaves
// the application for the provider's consent screen, and comes back through
// the callback route where it moves CallbackProcessing → Complete or Failed.
// The values needed between the two legs (state, PKCE verifier, URLs) live in
// a short-lived Store row that is consumed exactly once.
package handshake

import "fmt"

// State is a step of the redirect handshake.
type State int

const (
	Idle State = iota
	Redirecting
	CallbackProcessing
	Complete
	Failed
)

var stateNames = [...]string{
	Idle:               "idle",
	Redirecting:        "redirecting",
	CallbackProcessing: "callback_processing",
	Complete:           "complete",
	Failed:             "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Complete || s == Failed
}

// CanTransition reports whether to may follow s.
func (s State) CanTransition(to State) bool {
	switch s {
	case Idle:
		return to == Redirecting
	case Redirecting:
		return to == CallbackProcessing
	case CallbackProcessing:
		return to == Complete || to == Failed
	default:
		return false
	}
}
