// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// authNonceSize is the size of the random challenge nonce in bytes.
const authNonceSize = 32

// authSignatureSize is the size of an Ed25519 signature in bytes.
const authSignatureSize = ed25519.SignatureSize

// authTimeout bounds the whole handshake when the stream supports
// deadlines.
const authTimeout = 10 * time.Second

// PeerAuthenticator proves the local peer's identity on an established
// data channel. The certificate fingerprint in a synthesized answer is
// derived from the remote identity, which anyone knowing that identity
// can reproduce, so it does not by itself show that the remote holds the
// identity's private key. Running AuthenticatePeer after the channel
// opens closes that gap.
type PeerAuthenticator interface {
	// Identity returns the local peer's public identity.
	Identity() PeerIdentity

	// Sign signs message with the private key behind Identity and
	// returns a 64-byte Ed25519 signature.
	Sign(message []byte) []byte
}

// KeyAuthenticator is a PeerAuthenticator backed by an in-memory
// Ed25519 private key.
type KeyAuthenticator struct {
	privateKey ed25519.PrivateKey
	identity   PeerIdentity
}

// NewKeyAuthenticator wraps an Ed25519 private key.
func NewKeyAuthenticator(privateKey ed25519.PrivateKey) (*KeyAuthenticator, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes, want %d",
			ErrMalformedIdentity, len(privateKey), ed25519.PrivateKeySize)
	}
	identity, err := IdentityFromPublicKey(privateKey.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeyAuthenticator{privateKey: privateKey, identity: identity}, nil
}

func (a *KeyAuthenticator) Identity() PeerIdentity { return a.identity }

func (a *KeyAuthenticator) Sign(message []byte) []byte {
	return ed25519.Sign(a.privateKey, message)
}

// deadlineSetter is the subset of net.Conn used to bound the handshake.
type deadlineSetter interface {
	SetDeadline(time.Time) error
}

// AuthenticatePeer runs the mutual challenge-response handshake on
// stream. Both peers run it at the same time. Each side proves it holds
// the private key for its identity, and the local side checks that the
// remote's signature verifies under remote. Failures wrap
// ErrPeerAuthentication.
func AuthenticatePeer(stream io.ReadWriter, authenticator PeerAuthenticator, remote PeerIdentity) error {
	if err := remote.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPeerAuthentication, err)
	}
	conn, bounded := stream.(deadlineSetter)
	if bounded {
		if err := conn.SetDeadline(time.Now().Add(authTimeout)); err != nil {
			return fmt.Errorf("%w: setting handshake deadline: %w", ErrPeerAuthentication, err)
		}
	}
	if err := runPeerAuth(stream, authenticator, remote); err != nil {
		return fmt.Errorf("%w: %w", ErrPeerAuthentication, err)
	}
	if bounded {
		// A deadline left behind would cut off the authenticated stream.
		if err := conn.SetDeadline(time.Time{}); err != nil {
			return fmt.Errorf("clearing handshake deadline: %w", err)
		}
	}
	return nil
}

// runPeerAuth executes the handshake:
//
//  1. Send a 32-byte random nonce
//  2. Read the peer's 32-byte nonce
//  3. Sign (peerNonce || remote identity), binding the response to the
//     challenger the local side believes it is talking to
//  4. Send the 64-byte signature
//  5. Read the peer's 64-byte signature
//  6. Verify it against (ownNonce || local identity) with the remote key
//
// Writes run on a background goroutine so two peers on a synchronous
// stream such as net.Pipe do not block on their first Write together.
func runPeerAuth(stream io.ReadWriter, authenticator PeerAuthenticator, remote PeerIdentity) error {
	local := authenticator.Identity()

	nonce := make([]byte, authNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating auth nonce: %w", err)
	}

	writeErrors := make(chan error, 1)
	signatureToSend := make(chan []byte, 1)

	go func() {
		if _, err := stream.Write(nonce); err != nil {
			writeErrors <- fmt.Errorf("sending auth nonce: %w", err)
			return
		}
		signature, ok := <-signatureToSend
		if !ok {
			return
		}
		if _, err := stream.Write(signature); err != nil {
			writeErrors <- fmt.Errorf("sending auth signature: %w", err)
			return
		}
		writeErrors <- nil
	}()

	peerNonce := make([]byte, authNonceSize)
	if _, err := io.ReadFull(stream, peerNonce); err != nil {
		close(signatureToSend)
		return fmt.Errorf("reading peer nonce: %w", err)
	}

	signedMessage := make([]byte, 0, authNonceSize+len(remote))
	signedMessage = append(signedMessage, peerNonce...)
	signedMessage = append(signedMessage, remote[:]...)
	signatureToSend <- authenticator.Sign(signedMessage)

	peerSignature := make([]byte, authSignatureSize)
	if _, err := io.ReadFull(stream, peerSignature); err != nil {
		return fmt.Errorf("reading peer signature: %w", err)
	}

	if err := <-writeErrors; err != nil {
		return err
	}

	verifyMessage := make([]byte, 0, authNonceSize+len(local))
	verifyMessage = append(verifyMessage, nonce...)
	verifyMessage = append(verifyMessage, local[:]...)
	if !ed25519.Verify(remote.PublicKey(), verifyMessage, peerSignature) {
		return fmt.Errorf("signature from %s does not verify", remote.Short())
	}
	return nil
}
