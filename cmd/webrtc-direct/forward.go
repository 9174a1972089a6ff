// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/webrtcdirect/bridge"
)

func runForward(args []string, stdout io.Writer) error {
	var configPath string
	var listenAddr string
	var transportName string
	var timeout time.Duration
	var keyFile string
	var metricsListen string

	flagSet := pflag.NewFlagSet("forward", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $WEBRTC_DIRECT_CONFIG or built-in defaults)")
	flagSet.StringVarP(&listenAddr, "listen", "l", "127.0.0.1:8642", "TCP address to accept connections on")
	flagSet.StringVar(&transportName, "transport", "", "candidate transport when the address has none: udp or tcp (default: dial.transport)")
	flagSet.DurationVar(&timeout, "timeout", 0, "per-connection connect timeout (default: dial.connect_timeout)")
	flagSet.StringVar(&keyFile, "key-file", "", "hex Ed25519 seed; authenticate every channel with this identity")
	flagSet.StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on host:port (default: metrics.listen)")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("usage: %s forward [flags] <address>", binaryName)
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

	forwarder := &bridge.Bridge{
		ListenAddr: listenAddr,
		Address:    address,
		Dialer:     dialer,
		// Session connect timeout plus peer authentication.
		DialTimeout: cfg.Dial.ConnectTimeoutDuration() + 10*time.Second,
		Logger:      logger,
	}
	if err := forwarder.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "forwarding %s to %s\n", forwarder.Addr(), address)

	<-ctx.Done()
	forwarder.Stop()
	return nil
}
