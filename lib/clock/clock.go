// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations used by negotiation sessions.
// Production code injects Real(); tests inject Fake() and move time
// forward explicitly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a Timer whose C channel receives once d has
	// elapsed. Stop releases it early.
	NewTimer(d time.Duration) *Timer
}

// Timer is a single pending deadline. C has capacity 1.
type Timer struct {
	C <-chan time.Time

	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call
// stopped a pending timer, false if it had already fired or been
// stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
