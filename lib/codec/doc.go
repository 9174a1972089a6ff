// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration shared by every file
// format this module writes to disk (currently the derived-credential
// cache).
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical value always produces the same bytes, so two processes
// exporting the same cache contents produce identical files.
//
// Types implementing encoding.TextMarshaler (transport.PeerIdentity)
// are written as CBOR text strings and read back through
// UnmarshalText.
package codec
