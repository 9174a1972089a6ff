// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/datachannel"
	"github.com/pion/ice/v4"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// Stack creates connection objects. The production implementation is
// PionStack; state machine tests substitute a fake.
type Stack interface {
	// NewPeerConnection creates a connection object whose ICE agent
	// only uses the given transport.
	NewPeerConnection(transport TransportKind) (PeerConnection, error)
}

// PeerConnection is the subset of a WebRTC connection object the
// negotiation driver uses.
type PeerConnection interface {
	// CreateDataChannel declares an ordered, pre-negotiated data
	// channel with a fixed stream id. Both peers declare it; no
	// in-band open handshake takes place.
	CreateDataChannel(label string, id uint16) (DataChannel, error)

	// CreateOffer returns the stack's offer text.
	CreateOffer() (string, error)

	// SetLocalOffer commits offer as the local description.
	SetLocalOffer(offer string) error

	// SetRemoteAnswer applies answer as the remote description.
	SetRemoteAnswer(answer string) error

	// OnNegotiationNeeded registers the negotiation-needed handler.
	OnNegotiationNeeded(handler func())

	// OnConnectionStateChange registers the aggregate ICE+DTLS state
	// handler.
	OnConnectionStateChange(handler func(webrtc.PeerConnectionState))

	// Close releases the connection and every channel on it.
	Close() error
}

// DataChannel is the subset of a WebRTC data channel the dialer uses.
// *webrtc.DataChannel satisfies it.
type DataChannel interface {
	Label() string
	OnOpen(handler func())
	Detach() (datachannel.ReadWriteCloser, error)
	Close() error
}

var _ DataChannel = (*webrtc.DataChannel)(nil)

// PionStack builds pion PeerConnections configured for direct dialing:
// detached data channels, loopback host candidates, no mDNS, and ICE
// restricted to one transport.
type PionStack struct {
	// Logger receives pion's internal logging. Nil discards it.
	Logger *slog.Logger

	// ICEDisconnectedTimeout and ICEFailedTimeout tune the ICE agent.
	// Zero keeps pion's defaults.
	ICEDisconnectedTimeout time.Duration
	ICEFailedTimeout       time.Duration
}

// iceKeepaliveInterval matches the ICE agent's default.
const iceKeepaliveInterval = 2 * time.Second

func (s *PionStack) settingEngine(transport TransportKind) webrtc.SettingEngine {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.DetachDataChannels()
	settingEngine.SetIncludeLoopbackCandidate(true)
	settingEngine.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)

	switch transport.orDefault() {
	case TransportTCP:
		settingEngine.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeTCP4, webrtc.NetworkTypeTCP6})
	default:
		settingEngine.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4, webrtc.NetworkTypeUDP6})
	}

	if s.ICEDisconnectedTimeout > 0 && s.ICEFailedTimeout > 0 {
		settingEngine.SetICETimeouts(s.ICEDisconnectedTimeout, s.ICEFailedTimeout, iceKeepaliveInterval)
	}

	settingEngine.LoggerFactory = s.loggerFactory()
	return settingEngine
}

func (s *PionStack) loggerFactory() logging.LoggerFactory {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return NewPionLoggerFactory(logger)
}

// NewPeerConnection implements Stack.
func (s *PionStack) NewPeerConnection(transport TransportKind) (PeerConnection, error) {
	api := webrtc.NewAPI(webrtc.WithSettingEngine(s.settingEngine(transport)))
	connection, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	return &pionPeerConnection{connection: connection}, nil
}

// pionPeerConnection adapts *webrtc.PeerConnection to PeerConnection.
type pionPeerConnection struct {
	connection *webrtc.PeerConnection
}

func (p *pionPeerConnection) CreateDataChannel(label string, id uint16) (DataChannel, error) {
	negotiated := true
	ordered := true
	channel, err := p.connection.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (p *pionPeerConnection) CreateOffer() (string, error) {
	offer, err := p.connection.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (p *pionPeerConnection) SetLocalOffer(offer string) error {
	return p.connection.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	})
}

func (p *pionPeerConnection) SetRemoteAnswer(answer string) error {
	return p.connection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
}

func (p *pionPeerConnection) OnNegotiationNeeded(handler func()) {
	p.connection.OnNegotiationNeeded(handler)
}

func (p *pionPeerConnection) OnConnectionStateChange(handler func(webrtc.PeerConnectionState)) {
	p.connection.OnConnectionStateChange(handler)
}

func (p *pionPeerConnection) Close() error {
	if err := p.connection.Close(); err != nil {
		return fmt.Errorf("closing peer connection: %w", err)
	}
	return nil
}
