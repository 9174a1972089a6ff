// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/pion/ice/v4"
)

// TransportKind selects the transport sub-protocol under DTLS/SCTP.
type TransportKind int

const (
	// TransportUnset leaves the stack's own choice in place.
	TransportUnset TransportKind = iota
	TransportUDP
	TransportTCP
)

// ParseTransportKind parses "udp" or "tcp". The empty string is
// TransportUnset.
func ParseTransportKind(text string) (TransportKind, error) {
	switch strings.ToLower(text) {
	case "":
		return TransportUnset, nil
	case "udp":
		return TransportUDP, nil
	case "tcp":
		return TransportTCP, nil
	default:
		return TransportUnset, fmt.Errorf("unknown transport %q (want udp or tcp)", text)
	}
}

func (k TransportKind) String() string {
	switch k {
	case TransportUnset:
		return "unset"
	case TransportUDP:
		return "udp"
	case TransportTCP:
		return "tcp"
	default:
		return fmt.Sprintf("TransportKind(%d)", int(k))
	}
}

// Protocol returns the media line protocol token, or "" for
// TransportUnset.
func (k TransportKind) Protocol() string {
	switch k {
	case TransportUDP:
		return "UDP/DTLS/SCTP"
	case TransportTCP:
		return "TCP/DTLS/SCTP"
	default:
		return ""
	}
}

// orDefault resolves TransportUnset to UDP.
func (k TransportKind) orDefault() TransportKind {
	if k == TransportUnset {
		return TransportUDP
	}
	return k
}

// Fixed candidate attributes. The synthesized remote has exactly one
// host candidate, so foundation and priority never need to differ.
const (
	candidateComponent  = 1
	candidateFoundation = "1"
	candidatePriority   = 2130706431
)

// Candidate is the single reachability candidate advertised for the
// remote peer. The address must be a real listening endpoint of the
// peer, known out of band: nothing probes it before use.
type Candidate struct {
	Transport TransportKind
	Address   netip.AddrPort
}

func (c Candidate) validate() error {
	if c.Transport != TransportUDP && c.Transport != TransportTCP {
		return fmt.Errorf("%w: candidate transport %s", ErrInvalidAnswerParams, c.Transport)
	}
	if !c.Address.IsValid() || c.Address.Addr().IsUnspecified() || c.Address.Port() == 0 {
		return fmt.Errorf("%w: candidate address %q", ErrInvalidAnswerParams, c.Address)
	}
	return nil
}

// Marshal renders the candidate attribute value (without the
// "candidate:" key) through the ICE library's own candidate type.
func (c Candidate) Marshal() (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	config := &ice.CandidateHostConfig{
		Network:    c.Transport.String(),
		Address:    c.Address.Addr().Unmap().String(),
		Port:       int(c.Address.Port()),
		Component:  candidateComponent,
		Priority:   candidatePriority,
		Foundation: candidateFoundation,
	}
	if c.Transport == TransportTCP {
		config.TCPType = ice.TCPTypePassive
	}
	host, err := ice.NewCandidateHost(config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAnswerParams, err)
	}
	return host.Marshal(), nil
}

func (c Candidate) String() string {
	return "host " + c.Transport.String() + " " + c.Address.String()
}
