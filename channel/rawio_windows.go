//go:build windows

package channel

import (
	"errors"

	"golang.org/x/sys/windows"
)

// readFD reads from a raw SOCKET handle on Windows. Plain ReadFile is not
// usable here since Go's runtime creates sockets in overlapped mode, so
// this goes through WSARecv without an overlapped structure.
func readFD(fd uintptr, p []byte) (int, error) {
	var buf windows.WSABuf
	buf.Len = uint32(len(p))
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	var n, flags uint32
	err := windows.WSARecv(windows.Handle(fd), &buf, 1, &n, &flags, nil, nil)
	return int(n), err
}

// writeFD writes to a raw SOCKET handle on Windows via WSASend.
func writeFD(fd uintptr, p []byte) (int, error) {
	var buf windows.WSABuf
	buf.Len = uint32(len(p))
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	var n uint32
	err := windows.WSASend(windows.Handle(fd), &buf, 1, &n, 0, nil, nil)
	return int(n), err
}

// isWouldBlockErrno reports whether err is the platform's "no data or
// capacity available right now" errno for a non-blocking socket.
func isWouldBlockErrno(err error) bool {
	return errors.Is(err, windows.WSAEWOULDBLOCK)
}

// getSocketError reads and clears SO_ERROR on fd, returning nil if the
// socket has no pending error (i.e. a non-blocking connect succeeded).
func getSocketError(fd uintptr) error {
	errno, getErr := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if getErr != nil {
		return getErr
	}
	if errno != 0 {
		return windows.Errno(errno)
	}
	return nil
}
