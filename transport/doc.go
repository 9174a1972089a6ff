// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport opens WebRTC data channels to peers without a
// signaling exchange.
//
// A peer is known in advance by its identity (an Ed25519 public key)
// and a listening address. Everything the remote would normally send
// back in its answer is derivable: [DeriveCredential] turns an identity
// into a deterministic certificate (and so a DTLS fingerprint) plus ICE
// credentials. The listening side configures its stack with that
// credential; the dialing side computes the same values, synthesizes
// the answer the remote would have produced ([SynthesizeAnswer]) and
// applies it to its own connection object. The remote runs ICE-lite
// with a single host candidate at the given address, and the dialer's
// ICE agent checks that candidate directly.
//
// [DirectDialer] drives one [Session] per attempt through
//
//	Idle → OfferRequested → LocalDescriptionSet → AnswerInjected → Connecting → Connected
//
// with Failed and Closed reachable as described on [State]. Open runs
// the synchronous part; the session then waits at Connecting for the
// pre-negotiated data channel to open, the stack to report failure, or
// the connect timeout. [InterceptOffer] can patch the transport token
// of the local offer before it is committed.
//
// [DirectDialer.DialContext] wraps the whole sequence behind the
// [Dialer] interface and returns the data channel as a net.Conn
// ([DataChannelConn]). A configured [PeerAuthenticator] then runs a
// mutual Ed25519 challenge over the channel, since a derived
// fingerprint only proves the remote knows the identity, not that it
// holds the identity's key. [HTTPTransport] adapts a Dialer to
// http.RoundTripper.
//
// Addresses take the form
//
//	webrtc-direct://127.0.0.1:41000/<identity-hex>?transport=udp
//
// (see [ParseAddress]). [CredentialCache] memoizes derivations and can
// persist them as CBOR.
package transport
