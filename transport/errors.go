// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error a session reports wraps exactly one of the
// first five; the rest describe caller mistakes and local problems that
// are detected before a session exists.
var (
	// ErrMalformedIdentity means the peer identity is not a 32-byte,
	// non-zero Ed25519 public key. Caller error, not retried.
	ErrMalformedIdentity = errors.New("malformed peer identity")

	// ErrLocalDescriptionRejected means the local stack refused the
	// offer or its transport-patched variant.
	ErrLocalDescriptionRejected = errors.New("local description rejected")

	// ErrAnswerRejected means the local stack refused the synthesized
	// remote description. This indicates a synthesis defect, not a
	// transient condition.
	ErrAnswerRejected = errors.New("synthesized answer rejected")

	// ErrNegotiationTimeout means neither readiness nor failure was
	// reported within the connect timeout. A new session may be tried.
	ErrNegotiationTimeout = errors.New("negotiation timed out")

	// ErrConnectivityFailed means the stack reported an ICE or DTLS
	// failure while connecting.
	ErrConnectivityFailed = errors.New("connectivity failed")

	// ErrMalformedOffer means the offer has no single application media
	// line whose transport token can be patched.
	ErrMalformedOffer = errors.New("malformed offer")

	// ErrInvalidAnswerParams means the answer parameters violate the
	// negotiation format's constraints.
	ErrInvalidAnswerParams = errors.New("invalid answer parameters")

	// ErrSessionClosed is returned by operations on a session the
	// caller already released.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnknownSession is returned for handles the dialer never issued
	// or has already forgotten.
	ErrUnknownSession = errors.New("unknown session handle")

	// ErrPeerAuthentication means the remote failed the identity
	// challenge after the transport connected.
	ErrPeerAuthentication = errors.New("peer authentication failed")

	// ErrCacheSchemeMismatch means an imported credential cache was
	// written for a different derivation scheme.
	ErrCacheSchemeMismatch = errors.New("credential cache scheme mismatch")

	// ErrMalformedAddress means a webrtc-direct address could not be
	// parsed.
	ErrMalformedAddress = errors.New("malformed webrtc-direct address")
)

// NegotiationError records a session failure: the state the session
// was in when the failure was detected, the failure kind sentinel, and
// the underlying cause. errors.Is matches both Kind and Err.
type NegotiationError struct {
	State State
	Kind  error
	Err   error
}

func (e *NegotiationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s in state %s", e.Kind, e.State)
	}
	return fmt.Sprintf("%s in state %s: %v", e.Kind, e.State, e.Err)
}

func (e *NegotiationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kinds is ordered so that session failure kinds win over the causes
// they might wrap.
var kinds = []struct {
	err  error
	name string
}{
	{ErrMalformedIdentity, "malformed_identity"},
	{ErrLocalDescriptionRejected, "local_description_rejected"},
	{ErrAnswerRejected, "answer_rejected"},
	{ErrNegotiationTimeout, "negotiation_timeout"},
	{ErrConnectivityFailed, "connectivity_failed"},
	{ErrPeerAuthentication, "peer_authentication"},
	{ErrMalformedOffer, "malformed_offer"},
	{ErrInvalidAnswerParams, "invalid_answer_params"},
	{ErrSessionClosed, "session_closed"},
	{ErrUnknownSession, "unknown_session"},
	{ErrCacheSchemeMismatch, "cache_scheme_mismatch"},
	{ErrMalformedAddress, "malformed_address"},
}

// ErrorKind returns a stable label for err, suitable for metric labels
// and structured logs. Returns "" for nil and "other" for errors that
// wrap none of this package's sentinels.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range kinds {
		if errors.Is(err, kind.err) {
			return kind.name
		}
	}
	return "other"
}
