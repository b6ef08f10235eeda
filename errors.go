package selector

import (
	"errors"
	"fmt"

	"github.com/mionet/selector/channel"
)

// Sentinel errors returned directly (via errors.Is) by Selector operations.
var (
	// ErrDuplicateID is returned by Connect when the given connection id
	// is already known to the selector. Register performs no duplicate
	// check; the caller guarantees uniqueness on that path.
	ErrDuplicateID = errors.New("selector: connection id already registered")

	// ErrNoSuchConnection is returned by operations (Send, Mute, Unmute)
	// addressing a connection id the selector does not know about. Close
	// ignores unknown ids and Channel reports them through its bool.
	ErrNoSuchConnection = errors.New("selector: no such connection")

	// ErrInvalidTimeout is returned by Poll when passed a negative
	// timeout.
	ErrInvalidTimeout = errors.New("selector: invalid poll timeout")

	// ErrSendInProgress is returned by Send when the target channel
	// already has an unflushed send queued. The contract allows at most
	// one in-flight send per connection. It is the same value as
	// channel.ErrSendInProgress, which the default PlaintextChannel's
	// SetSend returns and Send passes through.
	ErrSendInProgress = channel.ErrSendInProgress

	// ErrSelectorClosed is returned by Connect, Register, Send and Poll
	// once CloseAll has been called on the selector.
	ErrSelectorClosed = errors.New("selector: selector is closed")

	// errNoChannelBuilder is returned by New when no ChannelBuilder was
	// supplied via WithChannelBuilder.
	errNoChannelBuilder = errors.New("selector: no ChannelBuilder configured")

	// errFileConnNotTCP is an internal invariant check: wrapping a raw
	// TCP socket fd always yields a *net.TCPConn.
	errFileConnNotTCP = errors.New("selector: wrapped socket is not a TCP connection")

	// errKeyInvalid marks a key that reported EventError or EventHangup.
	errKeyInvalid = errors.New("selector: key is no longer valid")
)

// ConnectError wraps a failure to establish or complete a connection,
// retaining which connection id and address were involved so callers
// (and logs) don't have to parse the message to recover them.
type ConnectError struct {
	ID      string
	Address string
	Cause   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("selector: connect %q to %s: %v", e.ID, e.Address, e.Cause)
}

func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// ChannelError records a failure attributed to a specific connection
// during Poll dispatch (connect or handshake, read, or write failure, or
// the key reporting an error/hangup condition). The selector surfaces
// these through Disconnected rather than returning them from Poll, since
// a single poll cycle can touch many channels.
type ChannelError struct {
	ID    string
	Stage string // "connect" (incl. handshake), "read", "write", or "finish" (error/hangup key)
	Cause error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("selector: channel %q %s: %v", e.ID, e.Stage, e.Cause)
}

func (e *ChannelError) Unwrap() error {
	return e.Cause
}
