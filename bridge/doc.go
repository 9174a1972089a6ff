// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge forwards local TCP connections to a peer over direct
// WebRTC data channels.
//
// The bridge listens on a local TCP address. Every accepted connection
// gets its own negotiation session: the bridge dials the configured
// webrtc-direct address through a [transport.Dialer] and copies bytes
// in both directions until either side closes. This lets ordinary TCP
// clients (curl, ssh with a ProxyCommand, database shells) reach a peer
// that only accepts direct data channels.
//
// A data channel has no half-close, so the end of one direction closes
// the whole pair.
package bridge
