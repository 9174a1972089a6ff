// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// PeerIdentity is a peer's public identity: its 32-byte Ed25519 public
// key. It is derivation input and verification key, never a secret.
type PeerIdentity [ed25519.PublicKeySize]byte

// ParsePeerIdentity validates raw identity bytes.
func ParsePeerIdentity(raw []byte) (PeerIdentity, error) {
	var identity PeerIdentity
	if len(raw) != len(identity) {
		return PeerIdentity{}, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedIdentity, len(raw), len(identity))
	}
	copy(identity[:], raw)
	if identity.IsZero() {
		return PeerIdentity{}, fmt.Errorf("%w: all-zero identity", ErrMalformedIdentity)
	}
	return identity, nil
}

// ParsePeerIdentityString parses the 64-character hex form produced by
// String.
func ParsePeerIdentityString(text string) (PeerIdentity, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return PeerIdentity{}, fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}
	return ParsePeerIdentity(raw)
}

// IdentityFromPublicKey converts an Ed25519 public key.
func IdentityFromPublicKey(publicKey ed25519.PublicKey) (PeerIdentity, error) {
	return ParsePeerIdentity(publicKey)
}

// IsZero reports whether every byte of the identity is zero.
func (p PeerIdentity) IsZero() bool {
	return p == PeerIdentity{}
}

// PublicKey returns the identity as an Ed25519 public key.
func (p PeerIdentity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(p[:])
}

func (p PeerIdentity) String() string {
	return hex.EncodeToString(p[:])
}

// Short returns the first 8 hex characters, for log fields.
func (p PeerIdentity) Short() string {
	return hex.EncodeToString(p[:4])
}

func (p PeerIdentity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PeerIdentity) UnmarshalText(text []byte) error {
	identity, err := ParsePeerIdentityString(string(text))
	if err != nil {
		return err
	}
	*p = identity
	return nil
}

func (p PeerIdentity) validate() error {
	if p.IsZero() {
		return fmt.Errorf("%w: all-zero identity", ErrMalformedIdentity)
	}
	return nil
}
