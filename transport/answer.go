// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// Defaults for the association attributes of the synthesized answer.
const (
	DefaultSCTPPort       = 5000
	DefaultMaxMessageSize = 16384
)

// MaxMessageSizeLimit is the largest max-message-size an answer may
// advertise: a DataChannelConn reader accepts messages up to this size.
const MaxMessageSizeLimit = readBufferSize

// AnswerParams is everything the answer synthesizer needs. Remote
// comes from the credential deriver, Candidate from the caller's
// target, and Media from the committed local offer.
type AnswerParams struct {
	Remote    RemoteCredential
	Candidate Candidate
	Media     MediaParams

	// SCTPPort and MaxMessageSize default to DefaultSCTPPort and
	// DefaultMaxMessageSize when zero.
	SCTPPort       int
	MaxMessageSize int
}

func (p AnswerParams) withDefaults() AnswerParams {
	if p.SCTPPort == 0 {
		p.SCTPPort = DefaultSCTPPort
	}
	if p.MaxMessageSize == 0 {
		p.MaxMessageSize = DefaultMaxMessageSize
	}
	if p.Media.Format == "" {
		p.Media.Format = dataChannelFormat
	}
	if p.Media.Protocol == "" {
		p.Media.Protocol = p.Candidate.Transport.Protocol()
	}
	return p
}

func (p AnswerParams) validate() error {
	if err := validateICECredentials(p.Remote.ICE); err != nil {
		return err
	}
	if p.Remote.Fingerprint.Algorithm != FingerprintAlgorithm || p.Remote.Fingerprint.IsZero() {
		return fmt.Errorf("%w: fingerprint %q", ErrInvalidAnswerParams, p.Remote.Fingerprint)
	}
	if err := p.Candidate.validate(); err != nil {
		return err
	}
	if p.Media.MediaID == "" || strings.ContainsAny(p.Media.MediaID, " \t\r\n") {
		return fmt.Errorf("%w: media id %q", ErrInvalidAnswerParams, p.Media.MediaID)
	}
	if p.Media.Protocol != TransportUDP.Protocol() && p.Media.Protocol != TransportTCP.Protocol() {
		return fmt.Errorf("%w: media protocol %q", ErrInvalidAnswerParams, p.Media.Protocol)
	}
	if p.SCTPPort < 1 || p.SCTPPort > 65535 {
		return fmt.Errorf("%w: sctp port %d", ErrInvalidAnswerParams, p.SCTPPort)
	}
	if p.MaxMessageSize < 1 || p.MaxMessageSize > MaxMessageSizeLimit {
		return fmt.Errorf("%w: max message size %d not in 1..%d", ErrInvalidAnswerParams, p.MaxMessageSize, MaxMessageSizeLimit)
	}
	return nil
}

// validateICECredentials enforces the RFC 8839 ice-char set and the
// 4..256 and 22..256 length bounds.
func validateICECredentials(credentials ICECredentials) error {
	if length := len(credentials.Ufrag); length < 4 || length > 256 {
		return fmt.Errorf("%w: ice ufrag length %d", ErrInvalidAnswerParams, length)
	}
	if length := len(credentials.Password); length < 22 || length > 256 {
		return fmt.Errorf("%w: ice password length %d", ErrInvalidAnswerParams, length)
	}
	if !isICEChars(credentials.Ufrag) || !isICEChars(credentials.Password) {
		return fmt.Errorf("%w: ice credentials contain characters outside ice-char", ErrInvalidAnswerParams)
	}
	return nil
}

func isICEChars(text string) bool {
	for index := 0; index < len(text); index++ {
		character := text[index]
		switch {
		case 'a' <= character && character <= 'z':
		case 'A' <= character && character <= 'Z':
		case '0' <= character && character <= '9':
		case character == '+' || character == '/':
		default:
			return false
		}
	}
	return true
}

// SynthesizeAnswer builds the remote peer's answer. The layout is
// fixed: session header, bundle group and ice-lite at session level,
// then a single application section with its attributes in a constant
// order and exactly one host candidate. The remote always claims the
// passive DTLS role, so the local stack runs the active handshake.
func SynthesizeAnswer(params AnswerParams) (*sdp.SessionDescription, error) {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}

	candidate, err := params.Candidate.Marshal()
	if err != nil {
		return nil, err
	}

	addressType := "IP4"
	address := params.Candidate.Address.Addr().Unmap()
	if address.Is6() {
		addressType = "IP6"
	}
	connection := &sdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: addressType,
		Address:     &sdp.Address{Address: address.String()},
	}

	return &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    addressType,
			UnicastAddress: address.String(),
		},
		SessionName:           "-",
		ConnectionInformation: connection,
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		Attributes: []sdp.Attribute{
			sdp.NewAttribute("group", "BUNDLE "+params.Media.MediaID),
			sdp.NewPropertyAttribute("ice-lite"),
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "application",
					Port:    sdp.RangedPort{Value: int(params.Candidate.Address.Port())},
					Protos:  strings.Split(params.Media.Protocol, "/"),
					Formats: []string{params.Media.Format},
				},
				ConnectionInformation: connection,
				Attributes: []sdp.Attribute{
					sdp.NewAttribute("mid", params.Media.MediaID),
					sdp.NewPropertyAttribute("sendrecv"),
					sdp.NewAttribute("ice-ufrag", params.Remote.ICE.Ufrag),
					sdp.NewAttribute("ice-pwd", params.Remote.ICE.Password),
					sdp.NewAttribute("fingerprint", params.Remote.Fingerprint.String()),
					sdp.NewAttribute("setup", "passive"),
					sdp.NewAttribute("sctp-port", strconv.Itoa(params.SCTPPort)),
					sdp.NewAttribute("max-message-size", strconv.Itoa(params.MaxMessageSize)),
					sdp.NewAttribute("candidate", candidate),
					sdp.NewPropertyAttribute("end-of-candidates"),
				},
			},
		},
	}, nil
}

// MarshalAnswer synthesizes the answer and serializes it to SDP text.
func MarshalAnswer(params AnswerParams) (string, error) {
	description, err := SynthesizeAnswer(params)
	if err != nil {
		return "", err
	}
	text, err := description.Marshal()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAnswerParams, err)
	}
	return string(text), nil
}
