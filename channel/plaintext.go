package channel

import (
	"errors"
	"fmt"
	"net"
)

// ErrSendInProgress is returned by PlaintextChannel.SetSend when a send
// is already queued and unflushed.
var ErrSendInProgress = errors.New("channel: send already in progress")

// PlaintextTransportLayer implements TransportLayer for unencrypted TCP:
// there is no handshake, so Prepare is a no-op and Ready is always true.
type PlaintextTransportLayer struct{}

func (PlaintextTransportLayer) Prepare() error { return nil }
func (PlaintextTransportLayer) Ready() bool    { return true }

// PlaintextChannel is the default Channel implementation: one TCP socket,
// size-delimited framing, no encryption.
type PlaintextChannel struct {
	id             string
	conn           *net.TCPConn
	fd             int
	transport      TransportLayer
	maxReceiveSize int

	send Send
	recv *NetworkReceive
	mute bool

	connecting bool
}

// newPlaintextChannel wraps conn for id. If connecting is true, the
// socket's connect is still in flight and FinishConnect must be called
// before Read/Write make sense.
func newPlaintextChannel(id string, conn *net.TCPConn, maxReceiveSize int, connecting bool) (*PlaintextChannel, error) {
	fd, err := tcpSocketFD(conn)
	if err != nil {
		return nil, err
	}
	return &PlaintextChannel{
		id:             id,
		conn:           conn,
		fd:             fd,
		transport:      PlaintextTransportLayer{},
		maxReceiveSize: maxReceiveSize,
		connecting:     connecting,
	}, nil
}

func (c *PlaintextChannel) ID() string { return c.id }
func (c *PlaintextChannel) FD() int    { return c.fd }

func (c *PlaintextChannel) FinishConnect() (bool, error) {
	if !c.connecting {
		return true, nil
	}
	// A readable/writable notification on a connecting socket means the
	// connect attempt has resolved, one way or the other; SO_ERROR (read
	// with getsockopt) tells us which.
	var sockErr error
	rawConn, err := c.conn.SyscallConn()
	if err != nil {
		return false, err
	}
	ctrlErr := rawConn.Control(func(fd uintptr) {
		sockErr = getSocketError(fd)
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	if sockErr != nil {
		return false, sockErr
	}
	c.connecting = false
	return true, nil
}

func (c *PlaintextChannel) Prepare() error { return c.transport.Prepare() }
func (c *PlaintextChannel) Ready() bool    { return !c.connecting && c.transport.Ready() }

func (c *PlaintextChannel) Read() (Receive, error) {
	if c.recv == nil {
		c.recv = NewNetworkReceive(c.id)
	}
	done, err := c.recv.ReadFrom(c.conn, c.maxReceiveSize)
	if err != nil {
		c.recv = nil
		return nil, err
	}
	if !done {
		return nil, nil
	}
	recv := c.recv
	c.recv = nil
	return recv, nil
}

func (c *PlaintextChannel) Write() (Send, error) {
	if c.send == nil {
		return nil, nil
	}
	done, err := c.send.Write(c.conn)
	if err != nil {
		s := c.send
		c.send = nil
		return nil, fmt.Errorf("write to %s: %w", s.Destination(), err)
	}
	if !done {
		return nil, nil
	}
	s := c.send
	c.send = nil
	return s, nil
}

func (c *PlaintextChannel) SetSend(s Send) error {
	if c.send != nil {
		return ErrSendInProgress
	}
	c.send = s
	return nil
}

func (c *PlaintextChannel) Mute()        { c.mute = true }
func (c *PlaintextChannel) Unmute()      { c.mute = false }
func (c *PlaintextChannel) IsMute() bool { return c.mute }

func (c *PlaintextChannel) SocketDescription() string {
	local, remote := "?", "?"
	if a := c.conn.LocalAddr(); a != nil {
		local = a.String()
	}
	if a := c.conn.RemoteAddr(); a != nil {
		remote = a.String()
	}
	return local + "->" + remote
}

func (c *PlaintextChannel) Close() error {
	return c.conn.Close()
}

// tcpSocketFD extracts the raw file descriptor backing conn.
func tcpSocketFD(conn *net.TCPConn) (int, error) {
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
