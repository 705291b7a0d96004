// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/wayline/internal/poller"
)

// Mode selects how connection operations behave when the socket is
// not ready.
type Mode uint8

const (
	// Blocking parks the calling thread in poll(2) until the socket
	// is ready or the context is cancelled.
	Blocking Mode = iota

	// NonBlocking never waits: operations that would need socket
	// readiness return ErrWouldBlock immediately.
	NonBlocking

	// Cooperative suspends only the calling goroutine, waiting on an
	// internal epoll poller, so the rest of the program keeps
	// running on the same threads.
	Cooperative
)

func (m Mode) String() string {
	switch m {
	case Blocking:
		return "blocking"
	case NonBlocking:
		return "non-blocking"
	case Cooperative:
		return "cooperative"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// waiter is the single point where the three modes differ: how to
// wait for the socket to become readable or writable. Everything
// above it (framing, dispatch, flushing) is mode-agnostic.
type waiter interface {
	waitReadable(ctx context.Context) error
	waitWritable(ctx context.Context) error
	close() error
}

// blockWaiter waits in poll(2) on the socket plus an eventfd that a
// context cancellation callback pokes to interrupt the wait.
type blockWaiter struct {
	sockFD int
	wakeFD int
}

func newBlockWaiter(sockFD int) (*blockWaiter, error) {
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("client: create wake eventfd: %w", err)
	}
	return &blockWaiter{sockFD: sockFD, wakeFD: wakeFD}, nil
}

func (w *blockWaiter) waitReadable(ctx context.Context) error {
	return w.wait(ctx, unix.POLLIN)
}

func (w *blockWaiter) waitWritable(ctx context.Context) error {
	return w.wait(ctx, unix.POLLOUT)
}

func (w *blockWaiter) wait(ctx context.Context, events int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		var one [8]byte
		binary.NativeEndian.PutUint64(one[:], 1)
		unix.Write(w.wakeFD, one[:])
	})
	defer stop()

	fds := [2]unix.PollFd{
		{Fd: int32(w.sockFD), Events: events},
		{Fd: int32(w.wakeFD), Events: unix.POLLIN},
	}
	for {
		fds[0].Revents, fds[1].Revents = 0, 0
		if _, err := unix.Poll(fds[:], -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("client: poll: %w", err)
		}
		if fds[1].Revents != 0 {
			// Drain the counter so a wake left over from an earlier
			// wait cannot satisfy a later one.
			var buf [8]byte
			unix.Read(w.wakeFD, buf[:])
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		if fds[0].Revents != 0 {
			// Error and hangup conditions count as ready: the
			// caller's next socket operation surfaces the failure.
			return nil
		}
	}
}

func (w *blockWaiter) close() error {
	return unix.Close(w.wakeFD)
}

// nonblockWaiter refuses to wait.
type nonblockWaiter struct{}

func (nonblockWaiter) waitReadable(ctx context.Context) error { return nonblockErr(ctx) }
func (nonblockWaiter) waitWritable(ctx context.Context) error { return nonblockErr(ctx) }
func (nonblockWaiter) close() error                           { return nil }

func nonblockErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrWouldBlock
}

// coopWaiter suspends the calling goroutine on the connection's
// epoll poller.
type coopWaiter struct {
	poller *poller.Poller
}

func (w coopWaiter) waitReadable(ctx context.Context) error { return w.poller.WaitRead(ctx) }
func (w coopWaiter) waitWritable(ctx context.Context) error { return w.poller.WaitWrite(ctx) }
func (w coopWaiter) close() error                           { return w.poller.Close() }
