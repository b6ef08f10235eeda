package selector

import (
	"net"
	"syscall"
)

// socketFD extracts the raw OS socket handle backing conn. On Unix this is
// the file descriptor; on Windows it is the SOCKET handle, which also fits
// in an int. It backs socketHandle, which hands the Windows wake socket to
// WSAPoll, and tcpSocketFD.
func socketFD(conn syscall.Conn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	if err := raw.Control(func(h uintptr) {
		fd = int(h)
	}); err != nil {
		return -1, err
	}
	return fd, nil
}

// tcpSocketFD is a convenience wrapper over socketFD for *net.TCPConn,
// the concrete type returned by net.DialTCP / (*net.TCPListener).AcceptTCP.
func tcpSocketFD(conn *net.TCPConn) (int, error) {
	return socketFD(conn)
}
