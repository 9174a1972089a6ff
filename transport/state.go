// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "fmt"

// State is a negotiation session's position in its lifecycle.
//
//	Idle → OfferRequested → LocalDescriptionSet → AnswerInjected → Connecting → Connected
//
// Any non-terminal state may move to Failed. Every state except Closed
// may move to Closed when the caller releases the session.
type State int

const (
	StateIdle State = iota
	StateOfferRequested
	StateLocalDescriptionSet
	StateAnswerInjected
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOfferRequested:
		return "OfferRequested"
	case StateLocalDescriptionSet:
		return "LocalDescriptionSet"
	case StateAnswerInjected:
		return "AnswerInjected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether negotiation has concluded. Stack events
// arriving in a terminal state are ignored.
func (s State) Terminal() bool {
	return s == StateConnected || s == StateFailed || s == StateClosed
}

// transitions lists every allowed edge. Anything else is a defect in
// the driver and is refused.
var transitions = map[State][]State{
	StateIdle:                {StateOfferRequested, StateFailed, StateClosed},
	StateOfferRequested:      {StateLocalDescriptionSet, StateFailed, StateClosed},
	StateLocalDescriptionSet: {StateAnswerInjected, StateFailed, StateClosed},
	StateAnswerInjected:      {StateConnecting, StateFailed, StateClosed},
	StateConnecting:          {StateConnected, StateFailed, StateClosed},
	StateConnected:           {StateClosed},
	StateFailed:              {StateClosed},
}

func canTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
