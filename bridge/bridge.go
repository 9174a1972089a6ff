// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/webrtcdirect/lib/netutil"
	"github.com/bureau-foundation/webrtcdirect/transport"
)

// DefaultDialTimeout bounds each per-connection dial when
// Bridge.DialTimeout is zero.
const DefaultDialTimeout = 30 * time.Second

// Bridge forwards TCP connections to a webrtc-direct peer.
type Bridge struct {
	// ListenAddr is the TCP address to listen on (e.g. "127.0.0.1:8642").
	ListenAddr string

	// Address is the webrtc-direct address every connection is
	// forwarded to.
	Address string

	// Dialer opens the data channels.
	Dialer transport.Dialer

	// DialTimeout bounds each dial. Zero uses DefaultDialTimeout.
	DialTimeout time.Duration

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-connection events are logged at Debug level; errors and
	// lifecycle events at Info/Error.
	Logger *slog.Logger

	listener    net.Listener
	cancel      context.CancelFunc
	done        chan struct{}
	connections sync.WaitGroup
}

// logger returns the configured logger or the default.
func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Start begins listening for TCP connections and forwarding them to the
// peer. It returns once the listener is bound and accepting, or returns
// an error if the configuration is invalid or binding fails. The bridge
// runs in the background until Stop is called or the context is
// cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	if b.ListenAddr == "" {
		return fmt.Errorf("bridge: ListenAddr is required")
	}
	if b.Dialer == nil {
		return fmt.Errorf("bridge: Dialer is required")
	}
	target, err := transport.ParseAddress(b.Address)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	listener, err := net.Listen("tcp", b.ListenAddr)
	if err != nil {
		return fmt.Errorf("bridge: failed to listen on %s: %w", b.ListenAddr, err)
	}

	b.listener = listener

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		b.acceptLoop(ctx)
	}()

	b.logger().Info("bridge started",
		"listen_addr", listener.Addr().String(),
		"peer", target.Identity.Short(),
		"peer_address", target.Address.String(),
	)
	return nil
}

// Addr returns the listener's address, useful when binding to port 0.
// Returns nil if the bridge has not been started.
func (b *Bridge) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Stop shuts down the bridge, closing the listener and waiting for all
// in-flight connections to drain.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.listener != nil {
		b.listener.Close()
	}
	if b.done != nil {
		<-b.done
	}
}

// Wait blocks until the bridge has stopped.
func (b *Bridge) Wait() {
	if b.done != nil {
		<-b.done
	}
}

// acceptLoop accepts connections and forwards each one. It waits for
// all in-flight connection goroutines to finish before returning, so
// that closing the done channel signals full quiescence.
func (b *Bridge) acceptLoop(ctx context.Context) {
	var connectionCount int64

	// Closing the listener alone does not stop in-flight forwards.
	var active sync.Map
	go func() {
		<-ctx.Done()
		b.listener.Close()
		active.Range(func(key, _ any) bool {
			key.(net.Conn).Close()
			return true
		})
	}()

	for {
		connection, err := b.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				b.connections.Wait()
				return
			default:
				b.logger().Error("accept failed", "error", err)
				continue
			}
		}

		connectionCount++
		connectionID := connectionCount
		active.Store(connection, struct{}{})
		b.connections.Add(1)
		go func() {
			defer b.connections.Done()
			defer active.Delete(connection)
			b.handleConnection(ctx, connection, connectionID)
		}()
	}
}

func (b *Bridge) handleConnection(ctx context.Context, tcpConnection net.Conn, connectionID int64) {
	defer tcpConnection.Close()

	logger := b.logger().With("connection_id", connectionID)
	logger.Debug("connection accepted",
		"remote_addr", tcpConnection.RemoteAddr(),
	)

	timeout := b.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialContext, cancel := context.WithTimeout(ctx, timeout)
	channel, err := b.Dialer.DialContext(dialContext, b.Address)
	cancel()
	if err != nil {
		logger.Error("failed to dial peer", "kind", transport.ErrorKind(err), "error", err)
		return
	}

	started := time.Now()
	if err := netutil.BridgeConnections(tcpConnection, channel); err != nil {
		logger.Debug("bridge copy error", "error", err)
	}

	logger.Debug("connection closed", "duration", time.Since(started))
}
