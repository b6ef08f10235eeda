package channel

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"syscall"
)

// sizeHeaderLen is the length, in bytes, of the big-endian frame-size
// prefix every NetworkSend/NetworkReceive carries, matching Kafka's wire
// format for its own NetworkSend/NetworkReceive.
const sizeHeaderLen = 4

// ErrFrameTooLarge is returned by NetworkReceive.ReadFrom when the
// advertised frame size exceeds the channel's configured maxReceiveSize.
var ErrFrameTooLarge = errors.New("channel: frame exceeds max receive size")

// NetworkSend is the default Send implementation: a destination id and a
// payload, written as a 4-byte big-endian length prefix followed by the
// payload bytes. Partial writes are resumed across calls to Write.
type NetworkSend struct {
	dest    string
	buf     []byte
	written int
}

// NewNetworkSend frames payload for delivery to dest.
func NewNetworkSend(dest string, payload []byte) *NetworkSend {
	buf := make([]byte, sizeHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[sizeHeaderLen:], payload)
	return &NetworkSend{dest: dest, buf: buf}
}

func (s *NetworkSend) Destination() string { return s.dest }

// Size returns the payload size in bytes, excluding the length header.
func (s *NetworkSend) Size() int { return len(s.buf) - sizeHeaderLen }

// Write pushes as many remaining bytes as conn will accept without
// blocking. done is true once every byte of the header+payload has been
// written.
func (s *NetworkSend) Write(conn net.Conn) (done bool, err error) {
	for s.written < len(s.buf) {
		n, err := connWrite(conn, s.buf[s.written:])
		s.written += n
		if err != nil {
			if isWouldBlock(err) {
				return false, nil
			}
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

// NetworkReceive is the default Receive implementation, built up by
// reading a 4-byte length prefix followed by that many payload bytes.
type NetworkReceive struct {
	source  string
	size    int
	sizeBuf [sizeHeaderLen]byte
	sizeLen int
	payload []byte
	read    int
	done    bool
}

// NewNetworkReceive starts an empty in-progress receive for source.
func NewNetworkReceive(source string) *NetworkReceive {
	return &NetworkReceive{source: source, size: -1}
}

func (r *NetworkReceive) Source() string { return r.source }

func (r *NetworkReceive) Payload() []byte { return r.payload }

// ReadFrom advances the receive against conn, non-blocking. It returns
// (true, nil) once a full frame has been read into Payload. maxSize <= 0
// means unbounded. A zero-byte read on the stream means the peer closed
// its end mid-frame and is surfaced as io.EOF.
func (r *NetworkReceive) ReadFrom(conn net.Conn, maxSize int) (done bool, err error) {
	if r.size < 0 {
		for r.sizeLen < sizeHeaderLen {
			n, err := connRead(conn, r.sizeBuf[r.sizeLen:])
			r.sizeLen += n
			if err != nil {
				if isWouldBlock(err) {
					return false, nil
				}
				return false, err
			}
			if n == 0 {
				return false, io.EOF
			}
		}
		size := int(binary.BigEndian.Uint32(r.sizeBuf[:]))
		if maxSize > 0 && size > maxSize {
			return false, ErrFrameTooLarge
		}
		r.size = size
		r.payload = make([]byte, size)
	}
	for r.read < len(r.payload) {
		n, err := connRead(conn, r.payload[r.read:])
		r.read += n
		if err != nil {
			if isWouldBlock(err) {
				return false, nil
			}
			return false, err
		}
		if n == 0 {
			return false, io.EOF
		}
	}
	r.done = true
	return true, nil
}

// connRead reads from conn at the raw descriptor level, bypassing the Go
// runtime's netpoller. A deadline-based non-blocking emulation does not
// work here: an already-expired deadline makes net.Conn.Read fail before
// attempting any I/O, so buffered bytes could never be drained. A raw
// read on the (already non-blocking) socket returns whatever the kernel
// has buffered, or EAGAIN.
func connRead(conn net.Conn, p []byte) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return conn.Read(p)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var ioErr error
	// The callback returns true unconditionally: waiting for readiness is
	// the selector's job, not this codec's.
	if err := raw.Read(func(fd uintptr) bool {
		n, ioErr = readFD(fd, p)
		return true
	}); err != nil {
		return 0, err
	}
	return n, ioErr
}

// connWrite is connRead's counterpart for the send path.
func connWrite(conn net.Conn, p []byte) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return conn.Write(p)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var ioErr error
	if err := raw.Write(func(fd uintptr) bool {
		n, ioErr = writeFD(fd, p)
		return true
	}); err != nil {
		return 0, err
	}
	return n, ioErr
}

// isWouldBlock reports whether err represents a non-blocking socket
// having no more data/capacity available right now, as opposed to a real
// I/O failure.
func isWouldBlock(err error) bool {
	if isWouldBlockErrno(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
