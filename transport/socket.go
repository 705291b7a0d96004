// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/wayline/internal/ring"
	"github.com/bureau-foundation/wayline/wire"
)

const (
	// Ring capacities. The outbound ring matches the message size cap
	// so any single message fits; the inbound ring holds two maximal
	// messages so framing can always make progress.
	outRingCapacity = 4096
	inRingCapacity  = 8192

	// maxFDsPerSend bounds the SCM_RIGHTS payload of one sendmsg.
	// This is the classic libwayland MAX_FDS_OUT value; peers size
	// their control buffers for it.
	maxFDsPerSend = 28

	// maxInboundFDs bounds the queue of received descriptors that no
	// decoded message has claimed yet. A peer that exceeds it is
	// flooding.
	maxInboundFDs = 56
)

var (
	// ErrWouldBlock reports that a send or receive could not make
	// progress without waiting. Nothing was lost; the operation can
	// be retried once the socket is ready.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrPeerClosed reports that the peer shut down the connection.
	ErrPeerClosed = errors.New("transport: peer closed the connection")

	// ErrSocketClosed reports use of a Socket after Close.
	ErrSocketClosed = errors.New("transport: socket closed")

	// ErrFDOverflow reports that the inbound descriptor queue
	// exceeded its bound before messages claimed the descriptors.
	ErrFDOverflow = errors.New("transport: inbound file descriptor queue overflow")
)

// pendingFD is an outbound descriptor waiting for its message bytes
// to flush. The offset is the absolute outbound stream position at
// which the carrying message starts; queue order is registration
// order and offsets never decrease.
type pendingFD struct {
	offset uint64
	file   *os.File
}

// Socket is a buffered, non-blocking Wayland stream socket. It is not
// safe for concurrent use; the owning connection is its sole caller.
type Socket struct {
	file *os.File
	fd   int

	out *ring.Buffer
	in  *ring.Buffer

	// Absolute outbound stream offsets: enqueued counts bytes written
	// into the out ring, flushed counts bytes accepted by the kernel.
	// enqueued - flushed always equals out.Len().
	enqueued uint64
	flushed  uint64

	outFDs []pendingFD
	inFDs  []*os.File

	encodeScratch []byte
	decodeScratch []byte
	oobScratch    []byte
	iovScratch    [][]byte
	rightsScratch []int

	closed bool
}

// New adopts an already-connected stream socket. The descriptor is
// switched to non-blocking mode; the Socket owns the file from here
// and closes it on Close.
func New(file *os.File) (*Socket, error) {
	fd := int(file.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("transport: set nonblocking: %w", err)
	}
	return &Socket{
		file:          file,
		fd:            fd,
		out:           ring.New(outRingCapacity),
		in:            ring.New(inRingCapacity),
		encodeScratch: make([]byte, 0, wire.MaxMessageSize),
		decodeScratch: make([]byte, wire.MaxMessageSize),
		oobScratch:    make([]byte, unix.CmsgSpace(maxFDsPerSend*4)),
		iovScratch:    make([][]byte, 0, 2),
		rightsScratch: make([]int, 0, maxFDsPerSend),
	}, nil
}

// RawFD exposes the underlying descriptor for readiness polling. The
// Socket retains ownership.
func (s *Socket) RawFD() int {
	return s.fd
}

// Buffered reports how many inbound bytes are framed and waiting.
func (s *Socket) Buffered() int {
	return s.in.Len()
}

// PendingOut reports how many outbound bytes await flushing.
func (s *Socket) PendingOut() int {
	return s.out.Len()
}

// WriteMessage encodes msg into the outbound ring and registers its
// file descriptor arguments at the message's stream offset. It
// returns ErrWouldBlock when the ring lacks room for the whole
// message; the caller flushes and retries. Descriptor arguments must
// stay open until the message has flushed; the Socket never closes
// them.
func (s *Socket) WriteMessage(msg *wire.Message) error {
	if s.closed {
		return ErrSocketClosed
	}
	size := msg.Size()
	if size > wire.MaxMessageSize {
		return &wire.FramingError{Detail: fmt.Sprintf("message size %d exceeds the %d-byte cap", size, wire.MaxMessageSize)}
	}
	files := msg.Files()
	if len(files) > maxFDsPerSend {
		return &wire.FramingError{Detail: fmt.Sprintf("message carries %d file descriptors, limit %d", len(files), maxFDsPerSend)}
	}
	if size > s.out.Free() {
		return ErrWouldBlock
	}

	s.encodeScratch = msg.Append(s.encodeScratch[:0])
	if err := s.out.WriteBytes(s.encodeScratch); err != nil {
		return fmt.Errorf("transport: enqueue message: %w", err)
	}
	for _, file := range files {
		s.outFDs = append(s.outFDs, pendingFD{offset: s.enqueued, file: file})
	}
	s.enqueued += uint64(size)
	return nil
}

// Flush performs one sendmsg carrying as much of the outbound ring as
// the descriptor batch allows. It reports drained=true once the ring
// is empty. ErrWouldBlock means the kernel accepted nothing; bytes
// and descriptors remain queued for the next attempt.
func (s *Socket) Flush() (drained bool, err error) {
	if s.closed {
		return false, ErrSocketClosed
	}
	if s.out.Len() == 0 {
		return true, nil
	}

	// Batch the leading descriptors whose messages fall inside the
	// flushable range, then truncate the range at the first message
	// whose descriptors did not make the batch. The peer must never
	// receive message bytes ahead of that message's descriptors.
	limit := s.flushed + uint64(s.out.Len())
	batch := 0
	for batch < len(s.outFDs) && batch < maxFDsPerSend && s.outFDs[batch].offset < limit {
		batch++
	}
	if batch < len(s.outFDs) && s.outFDs[batch].offset < limit {
		limit = s.outFDs[batch].offset
	}

	want := int(limit - s.flushed)
	seg1, seg2 := s.out.ReadSlices()
	if len(seg1) > want {
		seg1 = seg1[:want]
	}
	bufs := append(s.iovScratch[:0], seg1)
	if rest := want - len(seg1); rest > 0 {
		bufs = append(bufs, seg2[:rest])
	}

	var oob []byte
	if batch > 0 {
		s.rightsScratch = s.rightsScratch[:0]
		for _, pending := range s.outFDs[:batch] {
			s.rightsScratch = append(s.rightsScratch, int(pending.file.Fd()))
		}
		oob = unix.UnixRights(s.rightsScratch...)
	}

	var sent int
	for {
		sent, err = unix.SendmsgBuffers(s.fd, bufs, oob, nil, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL)
		if err == unix.EINTR {
			continue
		}
		break
	}
	switch {
	case err == unix.EAGAIN:
		return false, ErrWouldBlock
	case err == unix.EPIPE || err == unix.ECONNRESET:
		return false, ErrPeerClosed
	case err != nil:
		return false, fmt.Errorf("transport: sendmsg: %w", err)
	}

	s.out.Consume(sent)
	s.flushed += uint64(sent)
	if batch > 0 {
		// Ancillary data travels with the leading byte, so even a
		// partial send delivered the whole batch. Pop exactly once.
		s.outFDs = slices.Delete(s.outFDs, 0, batch)
	}
	return s.out.Len() == 0, nil
}

// Fill performs one recvmsg into the inbound ring's free space and
// queues any SCM_RIGHTS descriptors that arrived with it. It returns
// the byte count read, ErrWouldBlock when no data is ready, and
// ErrPeerClosed on end of stream.
func (s *Socket) Fill() (int, error) {
	if s.closed {
		return 0, ErrSocketClosed
	}
	free1, free2 := s.in.FreeSlices()
	if len(free1) == 0 && len(free2) == 0 {
		// The ring always holds a decodable message before it can
		// fill; a full ring means the caller stopped dispatching.
		return 0, errors.New("transport: inbound ring full")
	}
	bufs := append(s.iovScratch[:0], free1)
	if len(free2) > 0 {
		bufs = append(bufs, free2)
	}

	var (
		n, oobn int
		flags   int
		err     error
	)
	for {
		n, oobn, flags, _, err = unix.RecvmsgBuffers(s.fd, bufs, s.oobScratch, unix.MSG_DONTWAIT|unix.MSG_CMSG_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		break
	}
	switch {
	case err == unix.EAGAIN:
		return 0, ErrWouldBlock
	case err == unix.ECONNRESET:
		return 0, ErrPeerClosed
	case err != nil:
		return 0, fmt.Errorf("transport: recvmsg: %w", err)
	}
	if n == 0 && oobn == 0 {
		return 0, ErrPeerClosed
	}

	s.in.CommitWrite(n)
	if oobn > 0 {
		if err := s.queueInboundFDs(s.oobScratch[:oobn]); err != nil {
			return n, err
		}
	}
	if flags&unix.MSG_CTRUNC != 0 {
		// The kernel discarded part of the control payload; the
		// descriptor stream is now unrecoverable.
		return n, fmt.Errorf("transport: control message truncated: %w", ErrFDOverflow)
	}
	if len(s.inFDs) > maxInboundFDs {
		return n, ErrFDOverflow
	}
	return n, nil
}

// queueInboundFDs parses SCM_RIGHTS control messages and appends the
// carried descriptors, in order, to the inbound queue. MSG_CMSG_CLOEXEC
// already marked them close-on-exec.
func (s *Socket) queueInboundFDs(oob []byte) error {
	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return fmt.Errorf("transport: parse control message: %w", err)
	}
	for i := range cmsgs {
		if cmsgs[i].Header.Level != unix.SOL_SOCKET || cmsgs[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&cmsgs[i])
		if err != nil {
			return fmt.Errorf("transport: parse SCM_RIGHTS: %w", err)
		}
		for _, fd := range fds {
			s.inFDs = append(s.inFDs, os.NewFile(uintptr(fd), "wayland-fd"))
		}
	}
	return nil
}

// PeekHeader parses the header of the next inbound message without
// consuming it. ok is false while fewer than HeaderSize bytes are
// buffered. A malformed header is a fatal framing error.
func (s *Socket) PeekHeader() (header wire.Header, ok bool, err error) {
	if s.in.Len() < wire.HeaderSize {
		return wire.Header{}, false, nil
	}
	var raw [wire.HeaderSize]byte
	if err := s.in.PeekBytes(raw[:]); err != nil {
		return wire.Header{}, false, fmt.Errorf("transport: peek header: %w", err)
	}
	header, err = wire.ParseHeader(raw[:])
	if err != nil {
		return wire.Header{}, false, err
	}
	return header, true, nil
}

// ReadMessage consumes the next buffered message and decodes its body
// against desc, draining inbound descriptors in declaration order.
// The caller has already matched desc to the header from PeekHeader
// and confirmed via Buffered that the full declared length arrived.
func (s *Socket) ReadMessage(desc *wire.MessageDesc) ([]wire.Arg, error) {
	if s.closed {
		return nil, ErrSocketClosed
	}
	header, ok, err := s.PeekHeader()
	if err != nil {
		return nil, err
	}
	if !ok || s.in.Len() < int(header.Size) {
		return nil, fmt.Errorf("transport: message incomplete: %w", ErrWouldBlock)
	}
	buf := s.decodeScratch[:header.Size]
	if err := s.in.ReadBytes(buf); err != nil {
		return nil, fmt.Errorf("transport: read message: %w", err)
	}
	args, err := wire.DecodeBody(desc, buf[wire.HeaderSize:], s)
	if err != nil {
		return nil, err
	}
	return args, nil
}

// PopFD hands the oldest undelivered inbound descriptor to a decoder.
// It implements wire.FDSource.
func (s *Socket) PopFD() (*os.File, bool) {
	if len(s.inFDs) == 0 {
		return nil, false
	}
	file := s.inFDs[0]
	s.inFDs = slices.Delete(s.inFDs, 0, 1)
	return file, true
}

// Close closes the socket and any inbound descriptors that no decoded
// message claimed. Outbound descriptor arguments belong to their
// senders and are left open. Close is idempotent.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, file := range s.inFDs {
		file.Close()
	}
	s.inFDs = nil
	s.outFDs = nil
	return s.file.Close()
}
