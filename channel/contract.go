// Package channel defines the collaborator contracts the selector drives
// but does not implement itself: the per-connection Channel, its Send and
// Receive objects, and the ChannelBuilder that constructs one. It also
// ships a concrete plaintext TCP default (PlaintextChannelBuilder) so the
// selector is independently testable over real sockets.
package channel

import "net"

// Send represents one outbound frame in flight on a Channel. Write is
// called repeatedly by the Channel (from its own Write) until it reports
// done; the Send tracks how many bytes have been written so far.
type Send interface {
	// Destination is the connection id this send targets.
	Destination() string
	// Write advances the send against conn, non-blocking. done is true
	// once the entire frame (including any framing header) has been
	// written.
	Write(conn net.Conn) (done bool, err error)
}

// Receive represents one fully-parsed inbound frame, handed back to the
// caller through the selector's completed-receives list.
type Receive interface {
	// Source is the connection id this receive arrived on.
	Source() string
	// Payload is the frame body, excluding any framing header.
	Payload() []byte
}

// Channel wraps one non-blocking socket plus framing and (optionally)
// transport-layer handshake state (e.g. TLS). The selector never touches
// the socket directly; every read, write, and lifecycle transition goes
// through this contract.
type Channel interface {
	// ID is the connection id this channel was built for.
	ID() string

	// FD is the raw OS descriptor backing the channel's socket, used to
	// register/deregister with the Poller.
	FD() int

	// FinishConnect completes a non-blocking connect. Returns true once
	// the TCP handshake (and any transport-layer setup) is done; false
	// means the connect is still in progress and nothing else should run
	// against this channel this poll.
	FinishConnect() (bool, error)

	// Prepare advances a transport-layer handshake (e.g. TLS). Idempotent;
	// a no-op once Ready returns true. May be called even when no
	// handshake is required, in which case it returns nil immediately.
	Prepare() error

	// Ready reports whether the channel may carry application data.
	Ready() bool

	// Read returns one complete framed receive, or nil if the currently
	// available bytes don't yet form a full frame. Must be called in a
	// loop by the caller until it returns (nil, nil), to drain everything
	// a single readiness notification may have delivered.
	Read() (Receive, error)

	// Write advances the in-flight send, if any. Returns the completed
	// Send once fully written, or nil if it is still partial.
	Write() (Send, error)

	// SetSend queues s as the channel's in-flight send. Fails if a send
	// is already in flight.
	SetSend(s Send) error

	// Mute suspends receive delivery for this channel until Unmute.
	Mute()
	// Unmute reverses Mute.
	Unmute()
	// IsMute reports the current mute state.
	IsMute() bool

	// SocketDescription returns a human-readable local->remote address
	// pair, for log lines only.
	SocketDescription() string

	// Close releases the channel's socket and any transport-layer state.
	// Idempotent.
	Close() error
}

// ChannelBuilder constructs Channels for newly connected or newly
// registered sockets, and owns any builder-lifetime resources (e.g. a
// TLS config) that outlive any single Channel.
type ChannelBuilder interface {
	// BuildChannel wraps conn (already connected, or mid-connect for the
	// outbound case) as a Channel for id, rejecting inbound frames larger
	// than maxReceiveSize bytes. A maxReceiveSize of 0 or less means
	// unbounded.
	BuildChannel(id string, conn net.Conn, maxReceiveSize int) (Channel, error)

	// Close releases any builder-owned resources. Called once, from the
	// selector's CloseAll.
	Close() error
}

// ConnectingChannelBuilder is an optional refinement of ChannelBuilder for
// the outbound Connect path, where the socket's non-blocking connect may
// still be in progress when the Channel is built. Builders that don't
// implement it (e.g. ones only ever used via Register) are used as-is;
// the selector falls back to BuildChannel in that case.
type ConnectingChannelBuilder interface {
	ChannelBuilder
	BuildConnectingChannel(id string, conn net.Conn, maxReceiveSize int) (Channel, error)
}

// TransportLayer abstracts the handshake/readiness surface a Channel
// delegates to: plaintext TCP has nothing to prepare, while an encrypted
// transport advances a handshake across possibly many Prepare calls.
type TransportLayer interface {
	// Prepare advances the handshake. Returns nil once complete.
	Prepare() error
	// Ready reports whether the handshake has completed.
	Ready() bool
}
