//go:build windows

package selector

import (
	"net"
	"time"
)

// wakeFD on Windows is a loopback TCP pair. WSAPoll only accepts SOCKET
// handles (unlike epoll/kqueue, which will happily poll a pipe fd), so the
// self-pipe trick is implemented with a connected pair of sockets instead
// of an anonymous pipe.
type wakeFD struct {
	listener net.Listener
	reader   net.Conn
	writer   net.Conn
}

func newWakeFD() (*wakeFD, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	writer, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	reader, err := ln.Accept()
	if err != nil {
		_ = writer.Close()
		_ = ln.Close()
		return nil, err
	}
	return &wakeFD{listener: ln, reader: reader, writer: writer}, nil
}

func (w *wakeFD) fileDescriptor() int {
	return socketHandle(w.reader)
}

// signal wakes a concurrently blocked Select. Safe from any goroutine.
func (w *wakeFD) signal() {
	_, _ = w.writer.Write([]byte{1})
}

// drain clears any pending wake notifications after Select returns.
func (w *wakeFD) drain() {
	buf := make([]byte, 64)
	_ = w.reader.SetReadDeadline(time.Now().Add(time.Millisecond))
	for {
		if _, err := w.reader.Read(buf); err != nil {
			break
		}
	}
	_ = w.reader.SetReadDeadline(time.Time{})
}

func (w *wakeFD) close() error {
	_ = w.writer.Close()
	_ = w.reader.Close()
	return w.listener.Close()
}
