// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/webrtcdirect/lib/clock"
)

// SessionHandle identifies a negotiation session within its dialer.
type SessionHandle uint64

func (h SessionHandle) String() string {
	return fmt.Sprintf("session-%d", uint64(h))
}

// Target is the remote peer of a negotiation session.
type Target struct {
	// Identity is the remote peer's Ed25519 public key. Its derived
	// credential is pinned in the synthesized answer.
	Identity PeerIdentity

	// Address is the remote's listening endpoint. It becomes the single
	// host candidate of the synthesized answer.
	Address netip.AddrPort

	// Transport is the candidate's transport. TransportUnset means UDP,
	// or ForcedTransport when that is set.
	Transport TransportKind

	// ForcedTransport, if set, patches the transport token of the local
	// offer before it is committed. A stack that refuses patched offers
	// fails the session with ErrLocalDescriptionRejected. It must agree
	// with Transport when both are set.
	ForcedTransport TransportKind
}

// kind returns the one transport sub-protocol of an attempt. It drives
// the stack's network types, the offer patch and the answer's
// candidate alike.
func (t Target) kind() TransportKind {
	if t.ForcedTransport != TransportUnset {
		return t.ForcedTransport
	}
	return t.Transport.orDefault()
}

func (t Target) validateTransport() error {
	if t.Transport != TransportUnset && t.ForcedTransport != TransportUnset && t.Transport != t.ForcedTransport {
		return fmt.Errorf("%w: candidate transport %s disagrees with forced transport %s",
			ErrInvalidAnswerParams, t.Transport, t.ForcedTransport)
	}
	return nil
}

// Session is one negotiation attempt. It is created by
// DirectDialer.Open, which runs every synchronous transition; the
// session then suspends in Connecting until the stack reports the data
// channel open, the stack reports failure, the connect timeout fires,
// or the caller closes it. A session never renegotiates: a new attempt
// needs a new session.
type Session struct {
	handle  SessionHandle
	target  Target
	logger  *slog.Logger
	clock   clock.Clock
	timeout time.Duration

	observer Observer

	connection PeerConnection
	channel    DataChannel

	// channelOpen is closed by the data channel's open callback;
	// stackFailed receives the first failed or closed connection state.
	// Callbacks never take mu.
	channelOpen     chan struct{}
	channelOpenOnce sync.Once
	stackFailed     chan webrtc.PeerConnectionState

	// done is closed when the session reaches a terminal state.
	done chan struct{}

	mu           sync.Mutex
	state        State
	err          error
	offer        string
	answer       string
	connectingAt time.Time
	releaseOnce  sync.Once
}

func newSession(handle SessionHandle, target Target, config *DirectConfig, connection PeerConnection) *Session {
	return &Session{
		handle:      handle,
		target:      target,
		logger:      config.Logger.With("session", handle.String(), "peer", target.Identity.Short(), "address", target.Address.String()),
		clock:       config.Clock,
		timeout:     config.ConnectTimeout,
		observer:    config.Observer,
		connection:  connection,
		channelOpen: make(chan struct{}),
		stackFailed: make(chan webrtc.PeerConnectionState, 1),
		done:        make(chan struct{}),
		state:       StateIdle,
	}
}

// Handle returns the session's handle.
func (s *Session) Handle() SessionHandle { return s.handle }

// Target returns the remote peer the session negotiates with.
func (s *Session) Target() Target { return s.target }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that moved the session to Failed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Offer returns the committed local offer text, or "" before
// LocalDescriptionSet.
func (s *Session) Offer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offer
}

// Answer returns the synthesized answer text, or "" before
// AnswerInjected.
func (s *Session) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

// Done returns a channel closed when the session reaches a terminal
// state.
func (s *Session) Done() <-chan struct{} { return s.done }

// attachCallbacks wires the stack's events into the session. Handlers
// only signal channels, so a late event after a terminal state is a
// no-op.
func (s *Session) attachCallbacks() {
	s.connection.OnNegotiationNeeded(func() {
		s.logger.Debug("stack reported negotiation needed")
	})
	s.connection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debug("peer connection state changed", "connection_state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			select {
			case s.stackFailed <- state:
			default:
			}
		}
	})
	s.channel.OnOpen(func() {
		s.channelOpenOnce.Do(func() { close(s.channelOpen) })
	})
}

// advance moves from → to. It fails with ErrSessionClosed if the
// caller released the session in the meantime, and returns the
// recorded failure if the session already failed.
func (s *Session) advance(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return s.interruptedLocked()
	}
	s.setStateLocked(to)
	return nil
}

func (s *Session) interruptedLocked() error {
	switch s.state {
	case StateClosed:
		return fmt.Errorf("%s: %w", s.handle, ErrSessionClosed)
	case StateFailed:
		return s.err
	default:
		return fmt.Errorf("%s: unexpected state %s", s.handle, s.state)
	}
}

// setStateLocked performs a checked transition. Caller holds mu.
func (s *Session) setStateLocked(to State) {
	from := s.state
	if !canTransition(from, to) {
		// The driver never asks for an illegal edge; refusing it keeps
		// a terminal state terminal even if that invariant breaks.
		s.logger.Error("refusing illegal state transition", "from", from.String(), "to", to.String())
		return
	}
	s.state = to
	s.observer.Transition(from, to)
	s.logger.Info("negotiation state changed", "from", from.String(), "to", to.String())

	if to.Terminal() && !from.Terminal() {
		close(s.done)
	}
}

// fail moves the session to Failed unless it is already terminal and
// releases the stack handle. It returns the recorded failure, or the
// reason the session could not fail (already closed or failed).
func (s *Session) fail(kind, cause error) error {
	s.mu.Lock()
	if s.state.Terminal() {
		err := s.interruptedLocked()
		if s.state == StateConnected {
			err = nil
		}
		s.mu.Unlock()
		return err
	}
	state := s.state
	s.err = &NegotiationError{State: state, Kind: kind, Err: cause}
	err := s.err
	s.setStateLocked(StateFailed)
	s.observer.Failure(state, ErrorKind(err))
	// Released before unlocking so that a Wait returning Failed implies
	// the stack handle is closed. State callbacks never take mu.
	s.release()
	s.mu.Unlock()

	s.logger.Warn("negotiation failed", "state", state.String(), "error", err)
	return err
}

// setOffer records the committed offer and moves to LocalDescriptionSet.
func (s *Session) setOffer(offer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOfferRequested {
		return s.interruptedLocked()
	}
	s.offer = offer
	s.setStateLocked(StateLocalDescriptionSet)
	return nil
}

// setAnswer records the applied answer and moves to AnswerInjected.
func (s *Session) setAnswer(answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLocalDescriptionSet {
		return s.interruptedLocked()
	}
	s.answer = answer
	s.setStateLocked(StateAnswerInjected)
	return nil
}

// startConnecting enters Connecting, arms the connect timeout, and
// starts the goroutine that waits for the outcome.
func (s *Session) startConnecting() error {
	s.mu.Lock()
	if s.state != StateAnswerInjected {
		err := s.interruptedLocked()
		s.mu.Unlock()
		return err
	}
	s.connectingAt = s.clock.Now()
	s.setStateLocked(StateConnecting)
	timer := s.clock.NewTimer(s.timeout)
	s.mu.Unlock()

	go s.awaitOutcome(timer)
	return nil
}

// awaitOutcome is the suspension point at Connecting. Exactly one of
// the cases moves the session on; the rest are ignored once it is
// terminal.
func (s *Session) awaitOutcome(timer *clock.Timer) {
	select {
	case <-s.channelOpen:
		timer.Stop()
		s.connected()
	case state := <-s.stackFailed:
		timer.Stop()
		s.fail(ErrConnectivityFailed, fmt.Errorf("peer connection %s", state))
	case <-timer.C:
		s.fail(ErrNegotiationTimeout, fmt.Errorf("not connected within %s", s.timeout))
	case <-s.done:
		timer.Stop()
	}
}

func (s *Session) connected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return
	}
	latency := s.clock.Now().Sub(s.connectingAt)
	s.setStateLocked(StateConnected)
	s.observer.Connected(latency)
}

// Wait blocks until the session leaves Connecting. It returns nil once
// Connected, or the session's failure. If ctx ends first the session
// fails with ErrNegotiationTimeout wrapping the context error.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
		if err := s.fail(ErrNegotiationTimeout, ctx.Err()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConnected:
		return nil
	case StateFailed:
		return s.err
	default:
		return s.interruptedLocked()
	}
}

// Close releases the session from any state. The stack handle is
// closed and no further events are accepted. Closing twice returns
// ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", s.handle, ErrSessionClosed)
	}
	s.setStateLocked(StateClosed)
	s.mu.Unlock()

	s.release()
	return nil
}

// release closes the stack handle once. Descriptions applied to it are
// never reused.
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		if err := s.connection.Close(); err != nil {
			s.logger.Debug("closing peer connection failed", "error", err)
		}
	})
}
