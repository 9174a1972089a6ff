// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// recordingT captures Fatalf instead of stopping the test.
type recordingT struct {
	failure string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.failure = fmt.Sprintf(format, args...)
	panic(r)
}

func capture(function func(t TestingT)) (failure string) {
	recorder := &recordingT{}
	defer func() {
		if recovered := recover(); recovered != nil && recovered != any(recorder) {
			panic(recovered)
		}
		failure = recorder.failure
	}()
	function(recorder)
	return ""
}

func TestRequireReceiveValue(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}
}

func TestRequireReceiveTimeout(t *testing.T) {
	failure := capture(func(recorder TestingT) {
		RequireReceive(recorder, make(chan int), 10*time.Millisecond, "waiting for %s", "nothing")
	})
	if failure != "timed out after 10ms: waiting for nothing" {
		t.Errorf("failure = %q", failure)
	}
}

func TestRequireClosed(t *testing.T) {
	ch := make(chan struct{})
	close(ch)
	RequireClosed(t, ch, time.Second)

	failure := capture(func(recorder TestingT) {
		RequireClosed(recorder, make(chan struct{}), 10*time.Millisecond)
	})
	if failure == "" {
		t.Error("RequireClosed on an open channel did not fail")
	}
}
