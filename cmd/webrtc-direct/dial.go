// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/webrtcdirect/lib/config"
	"github.com/bureau-foundation/webrtcdirect/lib/netutil"
	"github.com/bureau-foundation/webrtcdirect/transport"
	"github.com/bureau-foundation/webrtcdirect/transport/prom"
)

func runDial(args []string, stdin io.Reader, stdout io.Writer) error {
	var configPath string
	var transportName string
	var timeout time.Duration
	var keyFile string
	var metricsListen string

	flagSet := pflag.NewFlagSet("dial", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $WEBRTC_DIRECT_CONFIG or built-in defaults)")
	flagSet.StringVar(&transportName, "transport", "", "candidate transport when the address has none: udp or tcp (default: dial.transport)")
	flagSet.DurationVar(&timeout, "timeout", 0, "connect timeout (default: dial.connect_timeout)")
	flagSet.StringVar(&keyFile, "key-file", "", "hex Ed25519 seed; authenticate with this identity after connecting")
	flagSet.StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on host:port (default: metrics.listen)")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("usage: %s dial [flags] <address>", binaryName)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if transportName != "" {
		cfg.Dial.Transport = transportName
	}
	if timeout > 0 {
		cfg.Dial.ConnectTimeout = timeout.String()
	}
	if metricsListen != "" {
		cfg.Metrics.Listen = metricsListen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	address, err := withDefaultTransport(flagSet.Arg(0), cfg.Dial.Transport)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer, cleanup, err := newDialer(cfg, logger, keyFile)
	if err != nil {
		return err
	}
	defer cleanup()

	started := time.Now()
	conn, err := dialer.DialContext(ctx, address)
	if err != nil {
		logger.Error("dial failed", "address", address, "kind", transport.ErrorKind(err), "error", err)
		return err
	}
	defer conn.Close()
	logger.Info("data channel open", "address", address, "elapsed", time.Since(started))

	if isTerminal(stdin) {
		fmt.Fprintf(stdout, "connected to %s (%s)\n", conn.RemoteAddr(), time.Since(started).Round(time.Millisecond))
		return nil
	}
	return pipe(ctx, conn, stdin, stdout, logger)
}

// newDialer builds a DirectDialer from cfg. The returned cleanup saves
// the credential cache and stops the metrics server.
func newDialer(cfg *config.Config, logger *slog.Logger, keyFile string) (*transport.DirectDialer, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	credentials := transport.NewCredentialCache()
	if cfg.Credentials.CacheFile != "" {
		loaded, err := credentials.LoadFile(cfg.Credentials.CacheFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("loaded credential cache", "path", cfg.Credentials.CacheFile, "entries", loaded)
		cleanups = append(cleanups, func() {
			if err := credentials.SaveFile(cfg.Credentials.CacheFile); err != nil {
				logger.Warn("saving credential cache failed", "path", cfg.Credentials.CacheFile, "error", err)
			}
		})
	}

	var observer transport.Observer
	if cfg.Metrics.Listen != "" {
		registry := prom.NewRegistry()
		observer = prom.NewDialObserver(registry)
		server, err := serveMetrics(cfg.Metrics.Listen, prom.Handler(registry))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { server.Close() })
		logger.Info("serving metrics", "listen", cfg.Metrics.Listen)
	}

	var authenticator transport.PeerAuthenticator
	if keyFile != "" {
		keyAuthenticator, err := loadKeyAuthenticator(keyFile)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		authenticator = keyAuthenticator
		logger.Info("authenticating as local identity", "identity", keyAuthenticator.Identity().String())
	}

	disconnected, failed := cfg.Dial.ICETimeouts()
	dialer := transport.NewDirectDialer(transport.DirectConfig{
		Logger: logger,
		Stack: &transport.PionStack{
			Logger:                 logger,
			ICEDisconnectedTimeout: disconnected,
			ICEFailedTimeout:       failed,
		},
		Credentials:      credentials,
		Observer:         observer,
		ConnectTimeout:   cfg.Dial.ConnectTimeoutDuration(),
		DataChannelID:    cfg.Dial.DataChannelID,
		DataChannelLabel: cfg.Dial.DataChannelLabel,
		SCTPPort:         cfg.Dial.SCTPPort,
		MaxMessageSize:   cfg.Dial.MaxMessageSize,
		Authenticator:    authenticator,
	})
	return dialer, cleanup, nil
}

// withDefaultTransport adds transport=<name> to address unless the
// address already names a transport or forces one.
func withDefaultTransport(address, name string) (string, error) {
	parsed, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", transport.ErrMalformedAddress, err)
	}
	query := parsed.Query()
	if query.Get("transport") != "" || query.Get("force") != "" {
		return address, nil
	}
	query.Set("transport", name)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// loadKeyAuthenticator reads a hex-encoded 32-byte Ed25519 seed.
func loadKeyAuthenticator(path string) (*transport.KeyAuthenticator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file %s: seed is %d bytes, want %d", path, len(seed), ed25519.SeedSize)
	}
	return transport.NewKeyAuthenticator(ed25519.NewKeyFromSeed(seed))
}

func serveMetrics(listen string, handler http.Handler) (*http.Server, error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go server.Serve(listener)
	return server, nil
}

func isTerminal(reader io.Reader) bool {
	file, ok := reader.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// pipe copies stdin to conn and conn to stdout until the remote closes
// the channel or ctx ends. End of stdin does not close the channel: a
// data channel has no half-close, so replies keep flowing.
func pipe(ctx context.Context, conn net.Conn, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	go func() {
		if _, err := io.Copy(conn, stdin); err != nil && !netutil.IsExpectedCloseError(err) {
			logger.Debug("copying stdin to the data channel stopped", "error", err)
		}
	}()

	received := make(chan error, 1)
	go func() {
		_, err := io.Copy(stdout, conn)
		received <- err
	}()

	select {
	case err := <-received:
		if err != nil && !netutil.IsExpectedCloseError(err) {
			return err
		}
		return nil
	case <-ctx.Done():
		if err := conn.Close(); err != nil {
			logger.Debug("closing data channel failed", "error", err)
		}
		<-received
		return nil
	}
}
