// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/webrtcdirect/lib/clock"
)

// Compile-time interface check.
var _ Dialer = (*DirectDialer)(nil)

// DefaultConnectTimeout bounds the Connecting state when
// DirectConfig.ConnectTimeout is zero.
const DefaultConnectTimeout = 30 * time.Second

// DirectConfig configures a DirectDialer. Zero values select defaults.
type DirectConfig struct {
	// Logger receives session logging. Nil discards it.
	Logger *slog.Logger

	// Clock drives the connect timeout. Nil uses the real clock.
	Clock clock.Clock

	// Stack creates connection objects. Nil uses a PionStack logging
	// to Logger.
	Stack Stack

	// Credentials caches derived remote credentials. Nil creates a
	// private cache. Share one cache between dialers to derive each
	// identity once per process.
	Credentials *CredentialCache

	// Observer receives lifecycle events. Nil uses NopObserver.
	Observer Observer

	// ConnectTimeout bounds the Connecting state.
	ConnectTimeout time.Duration

	// DataChannelID and DataChannelLabel declare the pre-negotiated
	// data channel. Both peers must use the same id.
	DataChannelID    uint16
	DataChannelLabel string

	// SCTPPort and MaxMessageSize are advertised in the synthesized
	// answer. MaxMessageSize also bounds each write on connections
	// returned by DialContext.
	SCTPPort       int
	MaxMessageSize int

	// Authenticator, if set, makes DialContext run the identity
	// challenge over the data channel before returning the connection.
	Authenticator PeerAuthenticator
}

func (c DirectConfig) withDefaults() DirectConfig {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Stack == nil {
		c.Stack = &PionStack{Logger: c.Logger}
	}
	if c.Credentials == nil {
		c.Credentials = NewCredentialCache()
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.SCTPPort == 0 {
		c.SCTPPort = DefaultSCTPPort
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	return c
}

// DirectDialer opens WebRTC data channel connections to peers whose
// identity and address are known in advance, with no signaling
// exchange: the remote's answer is synthesized locally from its
// identity. Sessions are independent; the dialer's lock only guards the
// handle table.
type DirectDialer struct {
	config DirectConfig

	mu         sync.Mutex
	sessions   map[SessionHandle]*Session
	nextHandle SessionHandle
}

// NewDirectDialer creates a dialer.
func NewDirectDialer(config DirectConfig) *DirectDialer {
	return &DirectDialer{
		config:   config.withDefaults(),
		sessions: make(map[SessionHandle]*Session),
	}
}

// Credentials returns the dialer's credential cache.
func (d *DirectDialer) Credentials() *CredentialCache {
	return d.config.Credentials
}

// Open starts a negotiation session with target and runs it to
// Connecting: declare the data channel, create and commit the offer,
// derive the remote credential, synthesize and apply the answer.
//
// If the stack cannot create the connection or declare the channel,
// Open returns a zero handle and the error. A failure after the session
// exists is returned together with a valid handle: Status reports
// StateFailed, and the caller must still Close the handle.
func (d *DirectDialer) Open(ctx context.Context, target Target) (SessionHandle, error) {
	if err := target.Identity.validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !target.Address.IsValid() {
		return 0, fmt.Errorf("%w: invalid target address", ErrInvalidAnswerParams)
	}
	if err := target.validateTransport(); err != nil {
		return 0, err
	}

	connection, err := d.config.Stack.NewPeerConnection(target.kind())
	if err != nil {
		return 0, fmt.Errorf("creating peer connection: %w", err)
	}
	channel, err := connection.CreateDataChannel(d.config.DataChannelLabel, d.config.DataChannelID)
	if err != nil {
		if closeErr := connection.Close(); closeErr != nil {
			d.config.Logger.Debug("closing peer connection failed", "peer", target.Identity.Short(), "error", closeErr)
		}
		return 0, fmt.Errorf("declaring data channel %d: %w", d.config.DataChannelID, err)
	}

	d.mu.Lock()
	d.nextHandle++
	handle := d.nextHandle
	session := newSession(handle, target, &d.config, connection)
	session.channel = channel
	d.sessions[handle] = session
	d.mu.Unlock()

	session.attachCallbacks()
	if err := d.negotiate(session); err != nil {
		return handle, err
	}
	return handle, nil
}

// negotiate runs the synchronous transitions. Each step calls the stack
// without holding the session lock, then advances the state, so a
// concurrent Close interrupts the sequence at the next step.
func (d *DirectDialer) negotiate(session *Session) error {
	target := session.target

	if err := session.advance(StateIdle, StateOfferRequested); err != nil {
		return err
	}

	rawOffer, err := session.connection.CreateOffer()
	if err != nil {
		return session.fail(ErrLocalDescriptionRejected, fmt.Errorf("creating offer: %w", err))
	}
	offer, err := InterceptOffer(rawOffer, target.ForcedTransport)
	if err != nil {
		return session.fail(ErrLocalDescriptionRejected, err)
	}
	media, err := ExtractMediaParams(offer)
	if err != nil {
		return session.fail(ErrLocalDescriptionRejected, err)
	}
	if err := session.connection.SetLocalOffer(offer); err != nil {
		return session.fail(ErrLocalDescriptionRejected, fmt.Errorf("setting local description: %w", err))
	}
	if err := session.setOffer(offer); err != nil {
		return err
	}

	remote, err := d.config.Credentials.Lookup(target.Identity)
	if err != nil {
		return session.fail(ErrMalformedIdentity, err)
	}
	answer, err := MarshalAnswer(AnswerParams{
		Remote: remote,
		Candidate: Candidate{
			Transport: target.kind(),
			Address:   target.Address,
		},
		Media:          media,
		SCTPPort:       d.config.SCTPPort,
		MaxMessageSize: d.config.MaxMessageSize,
	})
	if err != nil {
		return session.fail(ErrAnswerRejected, err)
	}
	if err := session.connection.SetRemoteAnswer(answer); err != nil {
		return session.fail(ErrAnswerRejected, fmt.Errorf("setting remote description: %w", err))
	}
	if err := session.setAnswer(answer); err != nil {
		return err
	}

	return session.startConnecting()
}

func (d *DirectDialer) session(handle SessionHandle) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	session, ok := d.sessions[handle]
	if !ok {
		return nil, fmt.Errorf("%s: %w", handle, ErrUnknownSession)
	}
	return session, nil
}

// Status returns the session's current state.
func (d *DirectDialer) Status(handle SessionHandle) (State, error) {
	session, err := d.session(handle)
	if err != nil {
		return 0, err
	}
	return session.State(), nil
}

// Wait blocks until the session is Connected (nil) or Failed (its
// failure). See Session.Wait.
func (d *DirectDialer) Wait(ctx context.Context, handle SessionHandle) error {
	session, err := d.session(handle)
	if err != nil {
		return err
	}
	return session.Wait(ctx)
}

// Close releases the session and forgets its handle.
func (d *DirectDialer) Close(handle SessionHandle) error {
	d.mu.Lock()
	session, ok := d.sessions[handle]
	delete(d.sessions, handle)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", handle, ErrUnknownSession)
	}
	return session.Close()
}

// Offer returns the session's committed local offer text.
func (d *DirectDialer) Offer(handle SessionHandle) (string, error) {
	session, err := d.session(handle)
	if err != nil {
		return "", err
	}
	return session.Offer(), nil
}

// Answer returns the session's synthesized answer text.
func (d *DirectDialer) Answer(handle SessionHandle) (string, error) {
	session, err := d.session(handle)
	if err != nil {
		return "", err
	}
	return session.Answer(), nil
}

// Sessions returns the number of open handles.
func (d *DirectDialer) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// DialContext parses a webrtc-direct address, negotiates a session,
// and returns the data channel as a net.Conn. Closing the connection
// closes the session. On any failure the session is closed before
// DialContext returns.
func (d *DirectDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	target, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	handle, err := d.Open(ctx, target)
	if err != nil {
		if handle != 0 {
			d.discard(handle)
		}
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	if err := d.Wait(ctx, handle); err != nil {
		d.discard(handle)
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}

	session, err := d.session(handle)
	if err != nil {
		return nil, err
	}
	raw, err := session.channel.Detach()
	if err != nil {
		d.discard(handle)
		return nil, fmt.Errorf("detaching data channel: %w", err)
	}

	localLabel := fmt.Sprintf("%s/%d", handle, d.config.DataChannelID)
	peerLabel := fmt.Sprintf("%s/%d", target.Identity.Short(), d.config.DataChannelID)
	conn := NewDataChannelConn(raw, localLabel, peerLabel)
	conn.maxMessageSize = d.config.MaxMessageSize
	conn.onClose = func() { d.discard(handle) }

	if d.config.Authenticator != nil {
		if err := AuthenticatePeer(conn, d.config.Authenticator, target.Identity); err != nil {
			if closeErr := conn.Close(); closeErr != nil {
				session.logger.Debug("closing unauthenticated conn failed", "error", closeErr)
			}
			return nil, fmt.Errorf("dialing %s: %w", address, err)
		}
		session.logger.Info("peer authenticated")
	}
	return conn, nil
}

// discard closes a session DialContext gives up on. The dial error is
// what the caller needs; a close failure is only logged.
func (d *DirectDialer) discard(handle SessionHandle) {
	if err := d.Close(handle); err != nil {
		d.config.Logger.Debug("closing abandoned session failed", "session", handle.String(), "error", err)
	}
}
