// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"net/http"
)

// Dialer opens connections to peers. [DirectDialer] is the
// implementation in this package.
type Dialer interface {
	// DialContext opens a network connection to the peer at the given
	// transport address. For DirectDialer the address is a
	// webrtc-direct URL (see [ParseAddress]).
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

// HTTPTransport creates an http.RoundTripper that routes all requests
// through the given Dialer to the specified transport address. The URL
// host in requests is ignored: all connections go through the dialer
// to the specified address.
func HTTPTransport(dialer Dialer, address string) http.RoundTripper {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, address)
		},
	}
}
