// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() {
		GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime
	})

	GitCommit = "abc1234"
	BuildTime = "2026-10-01T00:00:00Z"

	GitDirty = "false"
	if got, want := Info(), Version+" (abc1234, 2026-10-01T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestFullIncludesInfo(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full() = %q does not start with Info()", full)
	}
	if !strings.Contains(full, "Go: go") {
		t.Errorf("Full() = %q missing Go version", full)
	}
}
