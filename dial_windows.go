//go:build windows

package selector

import "net"

// dialNonblocking is the Windows counterpart of dial_unix.go's version.
// Unlike Unix, a raw SOCKET handle cannot be handed to os.NewFile /
// net.FileConn, so connections built this way are wrapped directly
// through the standard library's dialer; immediate is always reported
// true here since Windows's blocking-dial path already waits out the
// handshake before returning. Connect, and so the goroutine driving the
// selector, blocks for the duration of that handshake.
func dialNonblocking(address string, sendBuf, recvBuf int) (conn *net.TCPConn, immediate bool, err error) {
	c, err := net.Dial("tcp", address)
	if err != nil {
		return nil, false, err
	}
	tcpConn, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, false, errFileConnNotTCP
	}
	_ = tcpConn.SetKeepAlive(true)
	_ = tcpConn.SetNoDelay(true)
	if sendBuf != UseDefaultBufferSize {
		_ = tcpConn.SetWriteBuffer(sendBuf)
	}
	if recvBuf != UseDefaultBufferSize {
		_ = tcpConn.SetReadBuffer(recvBuf)
	}
	return tcpConn, true, nil
}
