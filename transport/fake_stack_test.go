// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/datachannel"
	"github.com/pion/webrtc/v4"
)

// fakeStack hands out fakePeerConnections. prepare, if set, configures
// each connection before the dialer sees it.
type fakeStack struct {
	newErr  error
	prepare func(*fakePeerConnection)

	mu          sync.Mutex
	connections []*fakePeerConnection
}

func (s *fakeStack) NewPeerConnection(transport TransportKind) (PeerConnection, error) {
	if s.newErr != nil {
		return nil, s.newErr
	}
	connection := &fakePeerConnection{transport: transport, offer: sampleOffer}
	if s.prepare != nil {
		s.prepare(connection)
	}
	s.mu.Lock()
	s.connections = append(s.connections, connection)
	s.mu.Unlock()
	return connection, nil
}

func (s *fakeStack) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *fakeStack) connection(index int) *fakePeerConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections[index]
}

// fakePeerConnection records what the dialer does and lets tests fire
// stack events. The hooks run inside the matching call.
type fakePeerConnection struct {
	transport TransportKind
	offer     string

	channelErr   error
	offerErr     error
	setLocalErr  error
	setRemoteErr error
	closeErr     error

	onRegister      func()
	beforeSetLocal  func()
	beforeSetRemote func()

	mu                 sync.Mutex
	channel            *fakeDataChannel
	localOffer         string
	remoteAnswer       string
	negotiationHandler func()
	stateHandler       func(webrtc.PeerConnectionState)
	closeCount         int
}

func (c *fakePeerConnection) CreateDataChannel(label string, id uint16) (DataChannel, error) {
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = &fakeDataChannel{label: label, id: id}
	return c.channel, nil
}

func (c *fakePeerConnection) CreateOffer() (string, error) {
	if c.offerErr != nil {
		return "", c.offerErr
	}
	return c.offer, nil
}

func (c *fakePeerConnection) SetLocalOffer(offer string) error {
	if c.beforeSetLocal != nil {
		c.beforeSetLocal()
	}
	if c.setLocalErr != nil {
		return c.setLocalErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localOffer = offer
	return nil
}

func (c *fakePeerConnection) SetRemoteAnswer(answer string) error {
	if c.beforeSetRemote != nil {
		c.beforeSetRemote()
	}
	if c.setRemoteErr != nil {
		return c.setRemoteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteAnswer = answer
	return nil
}

func (c *fakePeerConnection) OnNegotiationNeeded(handler func()) {
	c.mu.Lock()
	c.negotiationHandler = handler
	c.mu.Unlock()
	if c.onRegister != nil {
		c.onRegister()
	}
}

func (c *fakePeerConnection) OnConnectionStateChange(handler func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandler = handler
}

func (c *fakePeerConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	return c.closeErr
}

// fireState delivers a connection state change as the stack would.
func (c *fakePeerConnection) fireState(state webrtc.PeerConnectionState) {
	c.mu.Lock()
	handler := c.stateHandler
	c.mu.Unlock()
	if handler != nil {
		handler(state)
	}
}

func (c *fakePeerConnection) fireNegotiationNeeded() {
	c.mu.Lock()
	handler := c.negotiationHandler
	c.mu.Unlock()
	if handler != nil {
		handler()
	}
}

func (c *fakePeerConnection) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

func (c *fakePeerConnection) committed() (offer, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localOffer, c.remoteAnswer
}

func (c *fakePeerConnection) dataChannel() *fakeDataChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// fakeDataChannel cannot be detached; the connection-level tests run
// against real pion.
type fakeDataChannel struct {
	label string
	id    uint16

	mu     sync.Mutex
	onOpen func()
	closed bool
}

func (d *fakeDataChannel) Label() string { return d.label }

func (d *fakeDataChannel) OnOpen(handler func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOpen = handler
}

func (d *fakeDataChannel) Detach() (datachannel.ReadWriteCloser, error) {
	return nil, errors.New("fake data channel cannot be detached")
}

func (d *fakeDataChannel) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// open fires the open callback as the stack would once SCTP is up.
func (d *fakeDataChannel) open() {
	d.mu.Lock()
	handler := d.onOpen
	d.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// recordingObserver records lifecycle events as strings.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	failures    []string
	latencies   []time.Duration
}

func (o *recordingObserver) Transition(from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, fmt.Sprintf("%s->%s", from, to))
}

func (o *recordingObserver) Failure(state State, kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, fmt.Sprintf("%s:%s", state, kind))
}

func (o *recordingObserver) Connected(latency time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.latencies = append(o.latencies, latency)
}

func (o *recordingObserver) Transitions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.transitions...)
}

func (o *recordingObserver) Failures() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.failures...)
}

func (o *recordingObserver) Latencies() []time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Duration(nil), o.latencies...)
}
