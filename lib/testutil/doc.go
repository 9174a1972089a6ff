// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests waiting on negotiation events never hang forever
// and never call time.After directly. They are the only place in the
// test suite where wall-clock timeouts are used.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
