// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// webrtc-direct binaries.
//
// Configuration is loaded from a single file named either by the
// WEBRTC_DIRECT_CONFIG environment variable (via [Load]) or by a
// --config flag (via [LoadFile]). There is no discovery and no
// environment override of individual values; a binary that receives
// neither uses [Default] unchanged.
//
// Path fields support ${HOME} and ${VAR:-default} expansion after
// loading. Durations are written as Go duration strings ("30s") and
// checked by [Config.Validate].
//
// This package depends on no other packages in this module.
package config
