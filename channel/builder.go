package channel

import "net"

// PlaintextChannelBuilder is the default ChannelBuilder: it wraps every
// connection in a PlaintextChannel, with no transport-layer handshake.
type PlaintextChannelBuilder struct{}

// NewPlaintextChannelBuilder returns the default, encryption-free
// ChannelBuilder.
func NewPlaintextChannelBuilder() *PlaintextChannelBuilder {
	return &PlaintextChannelBuilder{}
}

func (b *PlaintextChannelBuilder) BuildChannel(id string, conn net.Conn, maxReceiveSize int) (Channel, error) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, errNotTCPConn
	}
	return newPlaintextChannel(id, tcpConn, maxReceiveSize, false)
}

// BuildConnectingChannel is the ConnectingChannelBuilder refinement used
// for the outbound Connect path, where conn's non-blocking connect may
// still be in flight and FinishConnect must check SO_ERROR before the
// channel is usable.
func (b *PlaintextChannelBuilder) BuildConnectingChannel(id string, conn net.Conn, maxReceiveSize int) (Channel, error) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, errNotTCPConn
	}
	return newPlaintextChannel(id, tcpConn, maxReceiveSize, true)
}

func (b *PlaintextChannelBuilder) Close() error { return nil }

var errNotTCPConn = &channelBuildError{"channel: plaintext builder requires a *net.TCPConn"}

type channelBuildError struct{ msg string }

func (e *channelBuildError) Error() string { return e.msg }
