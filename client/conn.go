// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/wayline/internal/poller"
	"github.com/bureau-foundation/wayline/lib/clock"
	"github.com/bureau-foundation/wayline/protocol"
	"github.com/bureau-foundation/wayline/transport"
	"github.com/bureau-foundation/wayline/wire"
)

var (
	// ErrWouldBlock reports that an operation needed socket readiness
	// the non-blocking mode refuses to wait for. The operation made
	// no partial change; retry it after the socket is ready.
	ErrWouldBlock = transport.ErrWouldBlock

	// ErrConnClosed is the terminal error of a connection shut down
	// by Close, as opposed to one killed by a wire-level failure.
	ErrConnClosed = errors.New("client: connection closed")

	// ErrReentrantDispatch reports an event handler trying to run
	// the dispatch loop that is already running it.
	ErrReentrantDispatch = errors.New("client: dispatch re-entered from an event handler")

	// ErrIDExhausted reports that every client-allocatable object
	// identifier is claimed. Retryable once deletions are confirmed.
	ErrIDExhausted = errors.New("client: object identifiers exhausted")
)

// ProtocolError is the compositor's fatal verdict on this client,
// delivered through the display's error event. It poisons the
// connection: the same value comes back from every operation after
// the one that decoded it.
type ProtocolError struct {
	// Object is the identifier the compositor blamed.
	Object wire.ObjectID
	// Interface names Object's interface, if the object was known to
	// this side when the error arrived.
	Interface string
	// Code is interface-specific.
	Code uint32
	// Message is the compositor's human-readable explanation.
	Message string
}

func (e *ProtocolError) Error() string {
	iface := e.Interface
	if iface == "" {
		iface = "object"
	}
	return fmt.Sprintf("client: protocol error on %s@%d (code %d): %s", iface, e.Object, e.Code, e.Message)
}

// EventHandler receives one decoded event. Handlers run synchronously
// inside Dispatch, in message arrival order. A handler may send
// requests and flush, but must not call Dispatch or Roundtrip.
//
// File descriptor arguments are owned by the handler; events that no
// handler receives have their descriptors closed by the connection.
type EventHandler func(conn *Conn, event Event)

// Event is one decoded event as delivered to a handler.
type Event struct {
	// Object is the event's addressed object.
	Object Object
	// Name is the event's name in the interface descriptor.
	Name string
	// Opcode is the event's opcode within the interface.
	Opcode uint16
	// Args holds the decoded arguments in declared order.
	Args []wire.Arg
}

// Options configures a connection.
type Options struct {
	// Mode selects the waiting behavior at the socket boundary.
	// The zero value is Blocking.
	Mode Mode

	// Logger receives diagnostic messages, including the classic
	// per-message trace lines when WAYLAND_DEBUG is set. If nil,
	// output is discarded.
	Logger *slog.Logger

	// Clock stamps trace records. If nil, defaults to clock.Real().
	Clock clock.Clock

	// DefaultHandler receives events for objects that have no
	// handler registered. If nil, such events are dropped (their
	// file descriptor arguments closed).
	DefaultHandler EventHandler

	// Tracer observes every message crossing the connection. See
	// Record for the contract.
	Tracer Tracer
}

// Conn is one client-side connection to a compositor.
//
// Not safe for concurrent use; see the package documentation.
type Conn struct {
	socket *transport.Socket
	logger *slog.Logger
	clk    clock.Clock
	mode   Mode
	tracer Tracer
	debug  bool

	objects        objectTable
	handlers       map[wire.ObjectID]EventHandler
	defaultHandler EventHandler

	globals      map[uint32]Global
	observers    []registryObserver
	nextObserver int

	display  Object
	registry Object

	// waiter implements the configured mode; syncWaiter is the
	// always-blocking fallback Roundtrip uses when the mode itself
	// never waits. In Blocking mode they are the same object.
	waiter     waiter
	syncWaiter *blockWaiter

	dispatching bool
	err         error
}

// Connect opens a connection to the compositor named by the standard
// environment variables (WAYLAND_SOCKET, WAYLAND_DISPLAY,
// XDG_RUNTIME_DIR) and performs the initial handshake: the display
// object exists immediately and a registry is bound, so global
// announcements arrive with the first roundtrip.
func Connect(options Options) (*Conn, error) {
	socket, err := transport.DialEnv()
	if err != nil {
		return nil, err
	}
	return bootstrap(socket, options)
}

// ConnectPath opens a connection to the compositor socket at an
// explicit path, bypassing the environment lookup.
func ConnectPath(path string, options Options) (*Conn, error) {
	socket, err := transport.Dial(path)
	if err != nil {
		return nil, err
	}
	return bootstrap(socket, options)
}

// New adopts an already-connected Unix socket. The connection takes
// ownership of the file and performs the same handshake as Connect.
func New(file *os.File, options Options) (*Conn, error) {
	if file == nil {
		return nil, fmt.Errorf("client: nil socket file")
	}
	socket, err := transport.New(file)
	if err != nil {
		return nil, err
	}
	return bootstrap(socket, options)
}

func bootstrap(socket *transport.Socket, options Options) (*Conn, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}

	c := &Conn{
		socket:         socket,
		logger:         logger,
		clk:            clk,
		mode:           options.Mode,
		tracer:         options.Tracer,
		defaultHandler: options.DefaultHandler,
		objects:        newObjectTable(),
		handlers:       make(map[wire.ObjectID]EventHandler),
		globals:        make(map[uint32]Global),
	}
	switch os.Getenv("WAYLAND_DEBUG") {
	case "1", "client":
		c.debug = true
	}

	syncWaiter, err := newBlockWaiter(socket.RawFD())
	if err != nil {
		socket.Close()
		return nil, err
	}
	c.syncWaiter = syncWaiter

	switch options.Mode {
	case Blocking:
		c.waiter = syncWaiter
	case NonBlocking:
		c.waiter = nonblockWaiter{}
	case Cooperative:
		p, err := poller.New(socket.RawFD())
		if err != nil {
			syncWaiter.close()
			socket.Close()
			return nil, err
		}
		c.waiter = coopWaiter{poller: p}
	default:
		syncWaiter.close()
		socket.Close()
		return nil, fmt.Errorf("client: unknown mode %d", uint8(options.Mode))
	}

	c.display = c.objects.registerRoot(protocol.Display)
	registry, err := c.SendConstructor(c.display, protocol.DisplayGetRegistry)
	if err != nil {
		c.poison(fmt.Errorf("client: bind registry: %w", err))
		return nil, err
	}
	c.registry = registry
	return c, nil
}

// Display returns the handle of the display object (identifier 1).
func (c *Conn) Display() Object { return c.display }

// Registry returns the handle of the registry bound at connection
// time.
func (c *Conn) Registry() Object { return c.registry }

// Mode returns the connection's concurrency mode.
func (c *Conn) Mode() Mode { return c.mode }

// LookupObject returns the current occupant of an identifier, if the
// identifier names a live object. Useful inside handlers that receive
// plain object identifiers as arguments.
func (c *Conn) LookupObject(id wire.ObjectID) (Object, bool) {
	state := c.objects.state(id)
	if state == nil || !state.alive {
		return Object{}, false
	}
	return c.objects.handle(id, state), true
}

// OnEvent registers the handler for an object's events, replacing any
// previous one. A nil handler unregisters. The registration dies with
// the object.
//
// Registry events fan out to every observer instead; see
// ObserveRegistry.
func (c *Conn) OnEvent(obj Object, handler EventHandler) error {
	if err := c.failed(); err != nil {
		return err
	}
	if c.objects.live(obj) == nil {
		return fmt.Errorf("client: no handler for %s: object is not live", obj)
	}
	if obj.iface == protocol.Registry {
		return fmt.Errorf("client: registry events are observed through ObserveRegistry")
	}
	if handler == nil {
		delete(c.handlers, obj.id)
		return nil
	}
	c.handlers[obj.id] = handler
	return nil
}

// Flush writes the out-ring to the socket until it drains. A full
// kernel buffer is handled per the mode: wait, ErrWouldBlock, or
// suspend. Cancellation and ErrWouldBlock leave the unflushed bytes
// queued for a later attempt.
func (c *Conn) Flush(ctx context.Context) error {
	return c.flushWith(ctx, c.waiter)
}

func (c *Conn) flushWith(ctx context.Context, w waiter) error {
	if err := c.failed(); err != nil {
		return err
	}
	for {
		drained, err := c.socket.Flush()
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				if werr := w.waitWritable(ctx); werr != nil {
					return werr
				}
				continue
			}
			return c.poison(err)
		}
		if drained {
			return nil
		}
	}
}

// Close shuts the connection down: the socket closes, undelivered
// inbound file descriptors close, the poller (if any) stops, and
// every subsequent operation returns ErrConnClosed. Closing an
// already-terminal connection is a no-op.
func (c *Conn) Close() error {
	if c.err != nil {
		return nil
	}
	c.poison(ErrConnClosed)
	return nil
}

// poison makes err the connection's terminal error and releases the
// socket and waiters. The first failure wins; later calls return the
// established error.
func (c *Conn) poison(err error) error {
	if c.err != nil {
		return c.err
	}
	c.err = err
	if c.waiter != nil && c.waiter != waiter(c.syncWaiter) {
		c.waiter.close()
	}
	if c.syncWaiter != nil {
		c.syncWaiter.close()
	}
	c.socket.Close()
	return c.err
}

// failed returns the terminal error, if the connection has one.
func (c *Conn) failed() error { return c.err }

// roundtripWaiter returns the waiter Roundtrip uses: the mode's own
// if it can wait, the blocking fallback if not.
func (c *Conn) roundtripWaiter() waiter {
	if c.mode == NonBlocking {
		return c.syncWaiter
	}
	return c.waiter
}

func closeFDArgs(args []wire.Arg) {
	for _, arg := range args {
		if fd, ok := arg.(wire.FD); ok && fd.File != nil {
			fd.File.Close()
		}
	}
}
