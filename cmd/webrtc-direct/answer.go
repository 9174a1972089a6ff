// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/webrtcdirect/transport"
)

// runAnswer prints the answer a dialer would synthesize for a captured
// offer, after the same transport patch it would apply.
func runAnswer(args []string, stdout io.Writer) error {
	var offerFile string
	var configPath string

	flagSet := pflag.NewFlagSet("answer", pflag.ContinueOnError)
	flagSet.StringVar(&offerFile, "offer-file", "", "file holding the local offer (required)")
	flagSet.StringVar(&configPath, "config", "", "config file (default: $WEBRTC_DIRECT_CONFIG or built-in defaults)")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if offerFile == "" || flagSet.NArg() != 1 {
		return fmt.Errorf("usage: %s answer --offer-file path <address>", binaryName)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	target, err := transport.ParseAddress(flagSet.Arg(0))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(offerFile)
	if err != nil {
		return fmt.Errorf("reading offer: %w", err)
	}

	offer, err := transport.InterceptOffer(string(data), target.ForcedTransport)
	if err != nil {
		return err
	}
	media, err := transport.ExtractMediaParams(offer)
	if err != nil {
		return err
	}
	remote, err := transport.DeriveRemoteCredential(target.Identity)
	if err != nil {
		return err
	}
	answer, err := transport.MarshalAnswer(transport.AnswerParams{
		Remote:         remote,
		Candidate:      transport.Candidate{Transport: target.Transport, Address: target.Address},
		Media:          media,
		SCTPPort:       cfg.Dial.SCTPPort,
		MaxMessageSize: cfg.Dial.MaxMessageSize,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, answer)
	return err
}
