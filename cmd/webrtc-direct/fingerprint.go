// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/pem"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/webrtcdirect/transport"
)

func runFingerprint(args []string, stdout io.Writer) error {
	var printPEM bool
	var cacheFile string

	flagSet := pflag.NewFlagSet("fingerprint", pflag.ContinueOnError)
	flagSet.BoolVar(&printPEM, "pem", false, "also print the derived certificate as PEM")
	flagSet.StringVar(&cacheFile, "cache-file", "", "CBOR credential cache to read and update")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("usage: %s fingerprint [--pem] [--cache-file path] <identity-hex>", binaryName)
	}

	identity, err := transport.ParsePeerIdentityString(flagSet.Arg(0))
	if err != nil {
		return err
	}

	cache := transport.NewCredentialCache()
	if cacheFile != "" {
		if _, err := cache.LoadFile(cacheFile); err != nil {
			return err
		}
	}
	remote, err := cache.Lookup(identity)
	if err != nil {
		return err
	}
	if cacheFile != "" {
		if err := cache.SaveFile(cacheFile); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "identity     %s\n", identity)
	fmt.Fprintf(stdout, "fingerprint  %s\n", remote.Fingerprint)
	fmt.Fprintf(stdout, "ice-ufrag    %s\n", remote.ICE.Ufrag)
	fmt.Fprintf(stdout, "ice-pwd      %s\n", remote.ICE.Password)

	if printPEM {
		credential, err := transport.DeriveCredential(identity)
		if err != nil {
			return err
		}
		return pem.Encode(stdout, &pem.Block{Type: "CERTIFICATE", Bytes: credential.Certificate.Raw})
	}
	return nil
}
