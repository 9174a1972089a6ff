// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at build time.
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns a one-line version string for --version output.
func Info() string {
	return fmt.Sprintf("%s (%s, %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}

