// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SocketPath returns a path for a Unix socket named name inside a
// fresh short-named directory under /tmp.
//
// Unix domain sockets have a 108-byte path limit (sun_path in
// sockaddr_un). Nested test temp directories can exceed it, making
// t.TempDir() unsuitable for socket files.
//
// The directory is removed when the test completes.
func SocketPath(t *testing.T, name string) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "assets-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return filepath.Join(directory, name)
}
