// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/webrtcdirect/lib/config"
	"github.com/bureau-foundation/webrtcdirect/lib/version"
)

const binaryName = "webrtc-direct"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	// Handle --version before anything else to match the other binaries.
	if len(args) > 0 && (args[0] == "--version" || args[0] == "version") {
		fmt.Fprintf(stdout, "%s %s\n", binaryName, version.Info())
		return nil
	}
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	subcommand, rest := args[0], args[1:]
	switch subcommand {
	case "fingerprint":
		return runFingerprint(rest, stdout)
	case "answer":
		return runAnswer(rest, stdout)
	case "dial":
		return runDial(rest, stdin, stdout)
	case "forward":
		return runForward(rest, stdout)
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <subcommand> [flags]

Subcommands:
  fingerprint   Print the derived credential for an identity
  answer        Print the answer synthesized for an offer
  dial          Connect to a peer and pipe stdin/stdout over the data channel
  forward       Accept local TCP connections and forward each over its own channel
  version       Print version information

Run '%s <subcommand> --help' for subcommand flags.
`, binaryName, binaryName)
}

// parseFlags parses a subcommand's flags. It returns done=true when
// --help was requested and usage has been printed.
func parseFlags(flagSet *pflag.FlagSet, args []string) (done bool, err error) {
	flagSet.BoolP("help", "h", false, "show help")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return true, nil
		}
		return false, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage of %s %s:\n", binaryName, flagSet.Name())
		flagSet.PrintDefaults()
		return true, nil
	}
	return false, nil
}

// loadConfig reads path if given, otherwise the file named by
// WEBRTC_DIRECT_CONFIG, otherwise returns the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// newLogger builds the slog handler the logging section asks for.
func newLogger(logging config.LoggingConfig, output io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logging.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch logging.Format {
	case "json":
		handler = slog.NewJSONHandler(output, options)
	default:
		handler = slog.NewTextHandler(output, options)
	}
	return slog.New(handler).With("component", binaryName), nil
}
