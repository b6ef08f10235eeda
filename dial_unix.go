//go:build unix

package selector

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// dialNonblocking opens a non-blocking TCP socket to address and
// initiates its connect. immediate is true when the OS completed the
// connect synchronously (the common loopback case), in which case the
// caller must simulate a connect-ready dispatch on the next poll rather
// than wait for a kernel event that will never come.
func dialNonblocking(address string, sendBuf, recvBuf int) (conn *net.TCPConn, immediate bool, err error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, false, err
	}

	domain := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		domain = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa6.Addr[:], addr.IP.To16())
		sa = sa6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, false, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, false, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	if sendBuf != UseDefaultBufferSize {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sendBuf)
	}
	if recvBuf != UseDefaultBufferSize {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBuf)
	}

	switch connErr := unix.Connect(fd, sa); connErr {
	case nil:
		immediate = true
	case unix.EINPROGRESS:
		immediate = false
	default:
		_ = unix.Close(fd)
		return nil, false, connErr
	}

	// os.NewFile dup's fd internally via net.FileConn; close our copy
	// once that's done so only the dup remains open.
	f := os.NewFile(uintptr(fd), address)
	c, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return nil, false, err
	}
	tcpConn, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, false, errFileConnNotTCP
	}
	return tcpConn, immediate, nil
}
