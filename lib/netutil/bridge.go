// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
	"net"
)

// BridgeReaders copies data in both directions between two connections,
// reading from readerA and readerB instead of the connections themselves.
// Pass a buffered reader when bytes were already consumed from a
// connection before forwarding began.
//
// It returns once either direction ends, after closing both connections
// so the other copy unblocks. The error is the first direction's, or nil
// when that direction ended by ordinary teardown (see IsExpectedCloseError).
func BridgeReaders(connectionA net.Conn, readerA io.Reader, connectionB net.Conn, readerB io.Reader) error {
	finished := make(chan error, 2)
	forward := func(destination io.Writer, source io.Reader) {
		_, err := io.Copy(destination, source)
		finished <- err
	}
	go forward(connectionB, readerA)
	go forward(connectionA, readerB)

	first := <-finished
	connectionA.Close()
	connectionB.Close()
	<-finished

	if IsExpectedCloseError(first) {
		return nil
	}
	return first
}

// BridgeConnections is BridgeReaders with each connection as its own
// reader.
func BridgeConnections(a, b net.Conn) error {
	return BridgeReaders(a, a, b, b)
}
