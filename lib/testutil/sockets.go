// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// SocketPair returns both ends of a connected Unix stream socket pair.
// Both descriptors are close-on-exec and both files are closed when
// the test completes; closing one early (to simulate a peer hangup or
// to hand ownership elsewhere) is fine, os.File.Close is idempotent
// per File.
func SocketPair(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	left := os.NewFile(uintptr(fds[0]), "socketpair-left")
	right := os.NewFile(uintptr(fds[1]), "socketpair-right")
	t.Cleanup(func() {
		_ = left.Close()
		_ = right.Close()
	})
	return left, right
}
