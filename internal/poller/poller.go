// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller suspends a goroutine until a socket is readable or
// writable, without parking the OS thread in a raw poll syscall.
//
// Each Poller owns an epoll instance watching one socket plus an
// eventfd used to interrupt the wait loop on Close. A single
// background goroutine runs EpollWait and converts readiness into
// tokens on buffered channels; WaitRead and WaitWrite arm the
// corresponding interest and park in a select against the caller's
// context. Interests are disarmed as they fire, so an idle connection
// costs nothing. Spurious wakeups are allowed: the engine always
// retries the syscall and only waits again after a fresh EAGAIN.
package poller

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrClosed reports a wait on a closed Poller.
var ErrClosed = errors.New("poller: closed")

// Poller delivers readiness for one socket. WaitRead and WaitWrite
// are intended for a single consuming goroutine; Close may be called
// once, by that same goroutine.
type Poller struct {
	epollFD int
	wakeFD  int
	sockFD  int

	readable chan struct{}
	writable chan struct{}
	done     chan struct{}

	mu     sync.Mutex
	armed  uint32
	closed bool
}

// New builds a Poller for sockFD and starts its wait loop. The socket
// is registered with no interests armed.
func New(sockFD int) (*Poller, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poller: epoll_create1: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epollFD)
		return nil, fmt.Errorf("poller: eventfd: %w", err)
	}

	p := &Poller{
		epollFD:  epollFD,
		wakeFD:   wakeFD,
		sockFD:   sockFD,
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	wakeEvent := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFD)}
	if err := unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, wakeFD, &wakeEvent); err != nil {
		p.closeFDs()
		return nil, fmt.Errorf("poller: register eventfd: %w", err)
	}
	sockEvent := unix.EpollEvent{Events: 0, Fd: int32(sockFD)}
	if err := unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, sockFD, &sockEvent); err != nil {
		p.closeFDs()
		return nil, fmt.Errorf("poller: register socket: %w", err)
	}

	go p.loop()
	return p, nil
}

// WaitRead parks until the socket is readable, the context ends, or
// the Poller closes.
func (p *Poller) WaitRead(ctx context.Context) error {
	return p.wait(ctx, unix.EPOLLIN, p.readable)
}

// WaitWrite parks until the socket is writable, the context ends, or
// the Poller closes.
func (p *Poller) WaitWrite(ctx context.Context) error {
	return p.wait(ctx, unix.EPOLLOUT, p.writable)
}

func (p *Poller) wait(ctx context.Context, interest uint32, ready chan struct{}) error {
	// A token left over from a wait the caller abandoned is stale;
	// readiness must be observed fresh after arming.
	select {
	case <-ready:
	default:
	}
	if err := p.arm(interest); err != nil {
		return err
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	}
}

// arm adds interest to the socket's armed event mask.
func (p *Poller) arm(interest uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.armed |= interest
	event := unix.EpollEvent{Events: p.armed, Fd: int32(p.sockFD)}
	if err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_MOD, p.sockFD, &event); err != nil {
		return fmt.Errorf("poller: arm: %w", err)
	}
	return nil
}

// disarm removes fired interests so level-triggered readiness cannot
// spin the loop.
func (p *Poller) disarm(fired uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.armed &^= fired
	event := unix.EpollEvent{Events: p.armed, Fd: int32(p.sockFD)}
	// The socket may already be gone during shutdown; the loop is
	// about to exit in that case.
	_ = unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_MOD, p.sockFD, &event)
}

func (p *Poller) loop() {
	defer close(p.done)
	events := make([]unix.EpollEvent, 4)
	for {
		n, err := unix.EpollWait(p.epollFD, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			event := events[i]
			if int(event.Fd) == p.wakeFD {
				var counter [8]byte
				unix.Read(p.wakeFD, counter[:])
				if p.isClosed() {
					return
				}
				continue
			}

			fired := event.Events
			// Errors and hangups wake every waiter; the next syscall
			// reports the condition itself.
			if fired&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				fired |= unix.EPOLLIN | unix.EPOLLOUT
			}
			p.disarm(fired & (unix.EPOLLIN | unix.EPOLLOUT))
			if fired&unix.EPOLLIN != 0 {
				signal(p.readable)
			}
			if fired&unix.EPOLLOUT != 0 {
				signal(p.writable)
			}
		}
	}
}

// signal delivers a readiness token unless one is already pending.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *Poller) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close interrupts the wait loop and releases the epoll and eventfd
// descriptors. The watched socket belongs to the caller and stays
// open.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(p.wakeFD, one[:]); err != nil {
		// The loop cannot be woken; close the descriptors anyway.
		p.closeFDs()
		return fmt.Errorf("poller: wake for close: %w", err)
	}
	<-p.done
	p.closeFDs()
	return nil
}

func (p *Poller) closeFDs() {
	unix.Close(p.epollFD)
	unix.Close(p.wakeFD)
}
