// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// CredentialScheme names the derivation below. Both ends of a
// connection must run the same scheme: the dialer derives the
// fingerprint it pins, the listener derives the certificate it presents.
const CredentialScheme = "webrtc-direct credential scheme v1"

// Domain separation for the derivation. Changing any of these values is
// a new scheme.
const (
	credentialSalt    = "webrtcdirect.credential.v1"
	credentialKeyInfo = "webrtcdirect.credential.p256.v1"
	iceContext        = "webrtcdirect 2026-01-01 ice credentials v1"

	certificateCommonName = "webrtc-direct"

	// maxKeyAttempts bounds the counter loop. A random 32-byte string
	// is outside the P-256 scalar range with probability about 2^-32,
	// so the loop exits on the first attempt in practice.
	maxKeyAttempts = 256
)

var (
	certificateNotBefore = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	certificateNotAfter  = time.Date(2125, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// ICE credential lengths. RFC 8839 requires at least 4 ufrag and 22
// password characters from the ice-char set; base64 std is a subset.
const (
	iceUfragLength    = 8
	icePasswordLength = 32
	iceMaterialLength = 30 // 40 base64 characters
)

// FingerprintAlgorithm is the only hash the scheme uses.
const FingerprintAlgorithm = "sha-256"

// Fingerprint is a transport-layer certificate fingerprint.
type Fingerprint struct {
	Algorithm string            `cbor:"algorithm"`
	Value     [sha256.Size]byte `cbor:"value"`
}

// String renders the fingerprint as the a=fingerprint attribute value:
// the algorithm, a space, and 32 upper-case hex pairs joined by colons.
func (f Fingerprint) String() string {
	return f.Algorithm + " " + f.Hex()
}

// Hex renders only the colon-separated digest.
func (f Fingerprint) Hex() string {
	var builder strings.Builder
	builder.Grow(len(f.Value)*3 - 1)
	encoded := strings.ToUpper(hex.EncodeToString(f.Value[:]))
	for index := 0; index < len(encoded); index += 2 {
		if index > 0 {
			builder.WriteByte(':')
		}
		builder.WriteString(encoded[index : index+2])
	}
	return builder.String()
}

// IsZero reports whether the fingerprint carries no digest.
func (f Fingerprint) IsZero() bool {
	return f.Value == [sha256.Size]byte{}
}

// ICECredentials are the ICE username fragment and password a peer
// uses for connectivity checks.
type ICECredentials struct {
	Ufrag    string `cbor:"ufrag"`
	Password string `cbor:"password"`
}

// RemoteCredential is everything the dialer needs to speak for the
// remote peer in its synthesized answer.
type RemoteCredential struct {
	Fingerprint Fingerprint    `cbor:"fingerprint"`
	ICE         ICECredentials `cbor:"ice"`
}

// Credential is the complete material derived from an identity. The
// listening side configures its stack with it so the dialer's pinned
// fingerprint matches the certificate presented during DTLS.
type Credential struct {
	Identity    PeerIdentity
	PrivateKey  *ecdsa.PrivateKey
	Certificate *x509.Certificate
	Remote      RemoteCredential
}

// WebRTCCertificate returns the certificate in the form pion's
// Configuration.Certificates expects.
func (c *Credential) WebRTCCertificate() webrtc.Certificate {
	return webrtc.CertificateFromX509(c.PrivateKey, c.Certificate)
}

// DeriveCredential derives the private key, certificate, fingerprint
// and ICE credentials for identity. Deterministic: the same identity
// yields byte-identical output in every process.
func DeriveCredential(identity PeerIdentity) (*Credential, error) {
	if err := identity.validate(); err != nil {
		return nil, err
	}

	privateKey, err := deriveKey(identity)
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: certificateCommonName},
		Issuer:                pkix.Name{CommonName: certificateCommonName},
		NotBefore:             certificateNotBefore,
		NotAfter:              certificateNotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
	}
	der, err := x509.CreateCertificate(zeroReader{}, template, template, &privateKey.PublicKey, deterministicSigner{privateKey})
	if err != nil {
		return nil, fmt.Errorf("creating certificate: %w", err)
	}
	certificate, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing derived certificate: %w", err)
	}

	return &Credential{
		Identity:    identity,
		PrivateKey:  privateKey,
		Certificate: certificate,
		Remote: RemoteCredential{
			Fingerprint: Fingerprint{Algorithm: FingerprintAlgorithm, Value: sha256.Sum256(der)},
			ICE:         deriveICECredentials(identity),
		},
	}, nil
}

// DeriveRemoteCredential returns the fingerprint and ICE credentials
// the remote peer with this identity presents.
func DeriveRemoteCredential(identity PeerIdentity) (RemoteCredential, error) {
	credential, err := DeriveCredential(identity)
	if err != nil {
		return RemoteCredential{}, err
	}
	return credential.Remote, nil
}

// DeriveFingerprint returns the certificate fingerprint the remote peer
// with this identity presents during the DTLS handshake.
func DeriveFingerprint(identity PeerIdentity) (Fingerprint, error) {
	remote, err := DeriveRemoteCredential(identity)
	if err != nil {
		return Fingerprint{}, err
	}
	return remote.Fingerprint, nil
}

// deriveKey expands the identity into P-256 scalars until one is in
// range. The counter is appended to the HKDF info as a single byte.
func deriveKey(identity PeerIdentity) (*ecdsa.PrivateKey, error) {
	scalar := make([]byte, 32)
	for counter := range maxKeyAttempts {
		info := append([]byte(credentialKeyInfo), byte(counter))
		reader := hkdf.New(sha256.New, identity[:], []byte(credentialSalt), info)
		if _, err := io.ReadFull(reader, scalar); err != nil {
			return nil, fmt.Errorf("expanding key material: %w", err)
		}
		privateKey, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), scalar)
		if err == nil {
			return privateKey, nil
		}
	}
	return nil, fmt.Errorf("no valid P-256 scalar in %d attempts", maxKeyAttempts)
}

func deriveICECredentials(identity PeerIdentity) ICECredentials {
	material := make([]byte, iceMaterialLength)
	blake3.DeriveKey(iceContext, identity[:], material)
	encoded := base64.RawStdEncoding.EncodeToString(material)
	return ICECredentials{
		Ufrag:    encoded[:iceUfragLength],
		Password: encoded[iceUfragLength : iceUfragLength+icePasswordLength],
	}
}

// deterministicSigner signs with RFC 6979 nonces regardless of the
// random source x509.CreateCertificate supplies, so the certificate DER
// (and with it the fingerprint) depends only on the key.
type deterministicSigner struct {
	key *ecdsa.PrivateKey
}

func (s deterministicSigner) Public() crypto.PublicKey {
	return &s.key.PublicKey
}

func (s deterministicSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return s.key.Sign(nil, digest, opts)
}

// zeroReader is handed to x509.CreateCertificate in place of a random
// source. With an explicit serial and a non-CA template nothing reads
// from it, and the signer ignores it.
type zeroReader struct{}

func (zeroReader) Read(buffer []byte) (int, error) {
	clear(buffer)
	return len(buffer), nil
}
