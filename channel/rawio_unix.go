//go:build unix

package channel

import (
	"errors"

	"golang.org/x/sys/unix"
)

// readFD reads from a raw socket descriptor on Unix systems.
func readFD(fd uintptr, p []byte) (int, error) {
	n, err := unix.Read(int(fd), p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// writeFD writes to a raw socket descriptor on Unix systems.
func writeFD(fd uintptr, p []byte) (int, error) {
	n, err := unix.Write(int(fd), p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// isWouldBlockErrno reports whether err is the platform's "no data or
// capacity available right now" errno for a non-blocking socket.
func isWouldBlockErrno(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// getSocketError reads and clears SO_ERROR on fd, returning nil if the
// socket has no pending error (i.e. a non-blocking connect succeeded).
func getSocketError(fd uintptr) error {
	errno, getErr := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	if getErr != nil {
		return getErr
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}
