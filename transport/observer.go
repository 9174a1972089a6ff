// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "time"

// Observer receives session lifecycle events. Implementations must be
// safe for concurrent use and must not block: they are called while a
// session holds its lock.
type Observer interface {
	// Transition is called for every state change.
	Transition(from, to State)

	// Failure is called when a session moves to Failed. kind is the
	// ErrorKind label of the failure.
	Failure(state State, kind string)

	// Connected is called once per session that reaches Connected,
	// with the time spent in Connecting.
	Connected(latency time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Transition(State, State) {}
func (NopObserver) Failure(State, string) {}
func (NopObserver) Connected(time.Duration) {}
