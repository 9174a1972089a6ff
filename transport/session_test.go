// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/webrtcdirect/lib/clock"
	"github.com/bureau-foundation/webrtcdirect/lib/testutil"
)

// newTestSession builds a session outside a dialer, wired to a fake
// connection.
func newTestSession(t *testing.T, observer Observer) (*Session, *fakePeerConnection) {
	t.Helper()
	config := DirectConfig{
		Clock:    clock.Fake(time.Unix(0, 0)),
		Observer: observer,
	}.withDefaults()
	connection := &fakePeerConnection{offer: sampleOffer}
	channel, err := connection.CreateDataChannel("data", 0)
	if err != nil {
		t.Fatal(err)
	}
	session := newSession(7, testTarget(), &config, connection)
	session.channel = channel
	session.attachCallbacks()
	return session, connection
}

// driveTo advances a fresh session along the negotiation path until it
// reaches state.
func driveTo(t *testing.T, session *Session, state State) {
	t.Helper()
	path := []State{StateIdle, StateOfferRequested, StateLocalDescriptionSet, StateAnswerInjected}
	for index := 0; index+1 < len(path) && path[index] != state; index++ {
		if err := session.advance(path[index], path[index+1]); err != nil {
			t.Fatalf("advance %s->%s: %v", path[index], path[index+1], err)
		}
	}
	if state == StateConnecting {
		if err := session.startConnecting(); err != nil {
			t.Fatalf("startConnecting: %v", err)
		}
	}
	if got := session.State(); got != state {
		t.Fatalf("driven to %s, want %s", got, state)
	}
}

func TestSession_CloseFromEveryState(t *testing.T) {
	for _, state := range []State{
		StateIdle,
		StateOfferRequested,
		StateLocalDescriptionSet,
		StateAnswerInjected,
		StateConnecting,
	} {
		t.Run(state.String(), func(t *testing.T) {
			observer := &recordingObserver{}
			session, connection := newTestSession(t, observer)
			driveTo(t, session, state)

			if err := session.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if session.State() != StateClosed {
				t.Errorf("state = %s, want Closed", session.State())
			}
			testutil.RequireClosed(t, session.Done(), time.Second, "done after Close")
			if connection.closes() != 1 {
				t.Errorf("connection closed %d times, want 1", connection.closes())
			}
			transitions := observer.Transitions()
			if want := state.String() + "->Closed"; transitions[len(transitions)-1] != want {
				t.Errorf("last transition = %s, want %s", transitions[len(transitions)-1], want)
			}

			if err := session.Close(); !errors.Is(err, ErrSessionClosed) {
				t.Errorf("second Close = %v, want ErrSessionClosed", err)
			}
			if connection.closes() != 1 {
				t.Error("second Close released the connection again")
			}
			if err := session.Wait(context.Background()); !errors.Is(err, ErrSessionClosed) {
				t.Errorf("Wait after Close = %v, want ErrSessionClosed", err)
			}
		})
	}
}

func TestSession_CloseAfterTerminal(t *testing.T) {
	observer := &recordingObserver{}
	session, connection := newTestSession(t, observer)
	driveTo(t, session, StateAnswerInjected)

	err := session.fail(ErrAnswerRejected, errors.New("bad answer"))
	if !errors.Is(err, ErrAnswerRejected) {
		t.Fatalf("fail = %v", err)
	}
	if ErrorKind(session.Err()) != "answer_rejected" {
		t.Errorf("Err kind = %q", ErrorKind(session.Err()))
	}

	// A second failure does not overwrite the first.
	if err := session.fail(ErrNegotiationTimeout, nil); !errors.Is(err, ErrAnswerRejected) {
		t.Errorf("second fail = %v, want the recorded ErrAnswerRejected", err)
	}
	if got := observer.Failures(); len(got) != 1 || got[0] != "AnswerInjected:answer_rejected" {
		t.Errorf("failures = %v", got)
	}

	// Failed moves only to Closed.
	if err := session.advance(StateFailed, StateConnecting); err != nil {
		t.Fatalf("advance returned %v", err)
	}
	if session.State() != StateFailed {
		t.Errorf("illegal transition applied: state = %s", session.State())
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if connection.closes() != 1 {
		t.Errorf("connection closed %d times, want 1", connection.closes())
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateOfferRequested, true},
		{StateIdle, StateConnecting, false},
		{StateOfferRequested, StateLocalDescriptionSet, true},
		{StateLocalDescriptionSet, StateAnswerInjected, true},
		{StateAnswerInjected, StateConnecting, true},
		{StateConnecting, StateConnected, true},
		{StateConnecting, StateFailed, true},
		{StateConnected, StateFailed, false},
		{StateConnected, StateClosed, true},
		{StateFailed, StateClosed, true},
		{StateFailed, StateIdle, false},
		{StateClosed, StateClosed, false},
		{StateClosed, StateIdle, false},
	}
	for _, test := range tests {
		if got := canTransition(test.from, test.to); got != test.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", test.from, test.to, got, test.want)
		}
	}

	for state := StateIdle; state <= StateClosed; state++ {
		if state != StateClosed && !canTransition(state, StateClosed) {
			t.Errorf("%s cannot be closed", state)
		}
		if !state.Terminal() && !canTransition(state, StateFailed) {
			t.Errorf("%s cannot fail", state)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateLocalDescriptionSet.String() != "LocalDescriptionSet" {
		t.Errorf("String = %q", StateLocalDescriptionSet.String())
	}
	if State(99).String() != "State(99)" {
		t.Errorf("unknown state String = %q", State(99).String())
	}
	if SessionHandle(3).String() != "session-3" {
		t.Errorf("handle String = %q", SessionHandle(3).String())
	}
}
