// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// AddressScheme is the URL scheme of webrtc-direct addresses:
//
//	webrtc-direct://<ip>:<port>/<identity-hex>[?transport=tcp]
const AddressScheme = "webrtc-direct"

// ParseAddress parses a webrtc-direct address into a Target. The host
// must be a literal IP address: there is no name resolution, because
// the address becomes the remote's ICE candidate verbatim.
func ParseAddress(address string) (Target, error) {
	parsed, err := url.Parse(address)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}
	if parsed.Scheme != AddressScheme {
		return Target{}, fmt.Errorf("%w: scheme %q, want %q", ErrMalformedAddress, parsed.Scheme, AddressScheme)
	}

	endpoint, err := netip.ParseAddrPort(parsed.Host)
	if err != nil {
		return Target{}, fmt.Errorf("%w: host %q: %v", ErrMalformedAddress, parsed.Host, err)
	}
	if endpoint.Port() == 0 || endpoint.Addr().IsUnspecified() {
		return Target{}, fmt.Errorf("%w: host %q is not a dialable endpoint", ErrMalformedAddress, parsed.Host)
	}

	identity, err := ParsePeerIdentityString(strings.Trim(parsed.Path, "/"))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}

	target := Target{Identity: identity, Address: endpoint}
	query := parsed.Query()
	if value := query.Get("transport"); value != "" {
		kind, err := ParseTransportKind(value)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
		}
		target.Transport = kind
	}
	if value := query.Get("force"); value != "" {
		kind, err := ParseTransportKind(value)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
		}
		target.ForcedTransport = kind
	}
	if err := target.validateTransport(); err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}
	target.Transport = target.kind()
	return target, nil
}

// FormatAddress renders target as a webrtc-direct address that
// ParseAddress accepts.
func FormatAddress(target Target) string {
	address := url.URL{
		Scheme: AddressScheme,
		Host:   target.Address.String(),
		Path:   "/" + target.Identity.String(),
	}
	query := url.Values{}
	if target.Transport == TransportTCP {
		query.Set("transport", target.Transport.String())
	}
	if target.ForcedTransport != TransportUnset {
		query.Set("force", target.ForcedTransport.String())
	}
	address.RawQuery = query.Encode()
	return address.String()
}
