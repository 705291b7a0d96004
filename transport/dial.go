// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// Dial connects to the Wayland socket at path and returns a Socket
// over the connection.
func Dial(path string) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: socket: %w", err)
	}
	for {
		err = unix.Connect(fd, &unix.SockaddrUnix{Name: path})
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: connect %s: %w", path, err)
	}
	return New(os.NewFile(uintptr(fd), path))
}

// DialEnv locates the compositor through the standard environment
// protocol. A WAYLAND_SOCKET value names an inherited, already
// connected descriptor: it is adopted, marked close-on-exec, and the
// variable is cleared so child processes cannot adopt it again.
// Otherwise the socket lives at $XDG_RUNTIME_DIR/$WAYLAND_DISPLAY,
// with "wayland-0" as the default display name; an absolute
// WAYLAND_DISPLAY is used as the path directly.
func DialEnv() (*Socket, error) {
	if raw := os.Getenv("WAYLAND_SOCKET"); raw != "" {
		fd, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid WAYLAND_SOCKET %q: %w", raw, err)
		}
		os.Unsetenv("WAYLAND_SOCKET")
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
			return nil, fmt.Errorf("transport: adopt WAYLAND_SOCKET fd %d: %w", fd, err)
		}
		return New(os.NewFile(uintptr(fd), "wayland-socket"))
	}

	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}
	if filepath.IsAbs(display) {
		return Dial(display)
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return nil, errors.New("transport: XDG_RUNTIME_DIR is not set")
	}
	return Dial(filepath.Join(runtimeDir, display))
}
