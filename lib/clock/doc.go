// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so negotiation
// timeouts can be tested without sleeping.
//
// Structs that wait on deadlines carry a Clock field. Production code
// uses Real(); tests use Fake() and drive time with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	dialer := transport.NewDirectDialer(transport.DirectConfig{Clock: c}, logger)
//	// ... start the goroutine that waits ...
//	c.WaitForTimers(1)
//	c.Advance(30 * time.Second)
//
// WaitForTimers closes the race between a goroutine registering its
// deadline and the test advancing past it.
package clock
