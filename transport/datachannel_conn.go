// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// readBufferSize is large enough for any message the SCTP layer
// delivers, so a detached channel never reports io.ErrShortBuffer.
const readBufferSize = 64 * 1024

// DataChannelConn wraps a detached pion data channel ReadWriteCloser as a
// net.Conn. The detached channel is message-oriented: each Write is one
// SCTP message and each Read must accept a whole message. The conn
// turns that into a byte stream, buffering the unread tail of a message
// and splitting writes at the advertised max message size, so HTTP and
// other stream protocols work on top of it.
//
// Deadline support uses timer-based cancellation: when a deadline fires,
// the underlying stream is closed, causing any blocked Read/Write to return
// an error. This matches the pattern used by net.Pipe.
type DataChannelConn struct {
	rwc        io.ReadWriteCloser
	localLabel string
	peerLabel  string

	// maxMessageSize bounds a single underlying Write.
	maxMessageSize int

	// onClose runs once after the stream is closed. DirectDialer uses it
	// to release the negotiation session that owns the channel.
	onClose   func()
	closeOnce sync.Once

	// pending holds the unread remainder of the last message. Reads are
	// serialized by readMu.
	readMu  sync.Mutex
	message []byte
	pending []byte

	// Deadline state. Once a deadline closes the stream, the conn is
	// permanently broken.
	mu             sync.Mutex
	readTimer      *time.Timer
	writeTimer     *time.Timer
	deadlineClosed bool
}

// Compile-time interface check.
var _ net.Conn = (*DataChannelConn)(nil)

// NewDataChannelConn wraps a detached pion data channel as a net.Conn.
// localLabel identifies the local endpoint (for logging/addr); peerLabel
// identifies the remote endpoint.
func NewDataChannelConn(rwc io.ReadWriteCloser, localLabel, peerLabel string) *DataChannelConn {
	return &DataChannelConn{
		rwc:            rwc,
		localLabel:     localLabel,
		peerLabel:      peerLabel,
		maxMessageSize: DefaultMaxMessageSize,
	}
}

func (c *DataChannelConn) Read(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.message == nil {
		c.message = make([]byte, readBufferSize)
	}
	// Zero-length messages carry nothing for a stream reader.
	for len(c.pending) == 0 {
		count, err := c.rwc.Read(c.message)
		if count > 0 {
			c.pending = c.message[:count]
			break
		}
		if err != nil {
			return 0, c.translateError(err)
		}
	}

	count := copy(buffer, c.pending)
	c.pending = c.pending[count:]
	return count, nil
}

func (c *DataChannelConn) Write(buffer []byte) (int, error) {
	written := 0
	for written < len(buffer) {
		chunk := buffer[written:]
		if len(chunk) > c.maxMessageSize {
			chunk = chunk[:c.maxMessageSize]
		}
		count, err := c.rwc.Write(chunk)
		written += count
		if err != nil {
			return written, c.translateError(err)
		}
	}
	return written, nil
}

func (c *DataChannelConn) Close() error {
	c.mu.Lock()
	c.stopTimersLocked()
	c.mu.Unlock()

	err := c.rwc.Close()
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}

// translateError reports a deadline-triggered close as
// os.ErrDeadlineExceeded, which net/http and friends recognize as a
// timeout.
func (c *DataChannelConn) translateError(err error) error {
	c.mu.Lock()
	deadlineClosed := c.deadlineClosed
	c.mu.Unlock()
	if deadlineClosed {
		return os.ErrDeadlineExceeded
	}
	return err
}

// LocalAddr returns a synthetic address identifying the local data channel endpoint.
func (c *DataChannelConn) LocalAddr() net.Addr {
	return &dataChannelAddr{label: c.localLabel}
}

// RemoteAddr returns a synthetic address identifying the remote data channel endpoint.
func (c *DataChannelConn) RemoteAddr() net.Addr {
	return &dataChannelAddr{label: c.peerLabel}
}

// SetDeadline sets both read and write deadlines. A zero value clears the deadline.
func (c *DataChannelConn) SetDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setReadDeadlineLocked(deadline)
	c.setWriteDeadlineLocked(deadline)
	return nil
}

// SetReadDeadline sets the read deadline. When the deadline fires, pending
// reads return an error. A zero value clears the deadline.
func (c *DataChannelConn) SetReadDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setReadDeadlineLocked(deadline)
	return nil
}

// SetWriteDeadline sets the write deadline. When the deadline fires, pending
// writes return an error. A zero value clears the deadline.
func (c *DataChannelConn) SetWriteDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setWriteDeadlineLocked(deadline)
	return nil
}

func (c *DataChannelConn) setReadDeadlineLocked(deadline time.Time) {
	if c.readTimer != nil {
		c.readTimer.Stop()
		c.readTimer = nil
	}
	if deadline.IsZero() || c.deadlineClosed {
		return
	}
	duration := time.Until(deadline)
	if duration <= 0 {
		c.closeFromDeadline()
		return
	}
	c.readTimer = time.AfterFunc(duration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeFromDeadline()
	})
}

func (c *DataChannelConn) setWriteDeadlineLocked(deadline time.Time) {
	if c.writeTimer != nil {
		c.writeTimer.Stop()
		c.writeTimer = nil
	}
	if deadline.IsZero() || c.deadlineClosed {
		return
	}
	duration := time.Until(deadline)
	if duration <= 0 {
		c.closeFromDeadline()
		return
	}
	c.writeTimer = time.AfterFunc(duration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closeFromDeadline()
	})
}

// closeFromDeadline closes the underlying stream to unblock pending I/O.
// Must be called with c.mu held.
func (c *DataChannelConn) closeFromDeadline() {
	if c.deadlineClosed {
		return
	}
	c.deadlineClosed = true
	c.rwc.Close()
}

func (c *DataChannelConn) stopTimersLocked() {
	if c.readTimer != nil {
		c.readTimer.Stop()
		c.readTimer = nil
	}
	if c.writeTimer != nil {
		c.writeTimer.Stop()
		c.writeTimer = nil
	}
}

// dataChannelAddr is a synthetic net.Addr for data channel connections.
type dataChannelAddr struct {
	label string
}

func (a *dataChannelAddr) Network() string { return "webrtc" }
func (a *dataChannelAddr) String() string  { return a.label }
