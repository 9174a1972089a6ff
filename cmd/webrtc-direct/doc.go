// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Webrtc-direct dials WebRTC data channels to peers whose identity and
// address are known, without a signaling server.
//
// Subcommands:
//
//	webrtc-direct fingerprint [--pem] [--cache-file path] <identity-hex>
//	webrtc-direct answer --offer-file path <address>
//	webrtc-direct dial [--config path] [--transport udp|tcp] [--timeout 30s]
//	                   [--key-file path] [--metrics-listen host:port] <address>
//	webrtc-direct forward [--listen 127.0.0.1:8642] [dial flags] <address>
//
// fingerprint prints the certificate fingerprint and ICE credentials a
// listener with the given identity presents; operators configure the
// listening side with the same derived values. answer prints the answer
// the dialer would synthesize for a captured offer. dial connects and
// pipes stdin to the data channel and the data channel to stdout. With
// an interactive stdin it only reports that the channel opened. forward
// listens on a local TCP address and opens a fresh session for every
// accepted connection, so TCP clients reach the peer without knowing
// anything about WebRTC.
//
// Addresses take the form webrtc-direct://<ip>:<port>/<identity-hex>,
// optionally with ?transport=tcp.
//
// Configuration is read from --config, or the file named by
// WEBRTC_DIRECT_CONFIG, or built-in defaults when neither is set.
package main
