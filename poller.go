package selector

import "errors"

// IOEvent is a bitmask of readiness conditions reported by the OS poller.
type IOEvent uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvent = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing. A
	// non-blocking connect() also completes as write-ready, so this value
	// doubles as "connect-ready" for sockets registered via connect interest.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// ReadyKey is one readiness notification returned by Poller.Select, naming
// the file descriptor and the events that fired on it.
type ReadyKey struct {
	FD     int
	Events IOEvent
}

// Standard poller errors.
var (
	ErrFDAlreadyRegistered = errors.New("selector: fd already registered")
	ErrFDNotRegistered     = errors.New("selector: fd not registered")
	ErrPollerClosed        = errors.New("selector: poller closed")
)

// Poller is the thin wrapper over a kernel readiness primitive (epoll,
// kqueue, or an IOCP-equivalent) that the Selector drives one poll at a
// time. Registration tracks interest only; attachments (which Channel a
// fd belongs to) are kept by the Selector's own registry as a parallel
// map keyed by fd, so the poller itself stays free of caller-owned
// pointers.
//
// Implementations are NOT thread-safe, with the single exception of
// Wakeup, which may be called concurrently from any goroutine.
type Poller interface {
	// Register begins monitoring fd for the given interest set.
	Register(fd int, interest IOEvent) error
	// Modify changes the interest set for an already-registered fd.
	Modify(fd int, interest IOEvent) error
	// Deregister stops monitoring fd. An unknown fd is left untouched; the
	// epoll implementation reports an error for it, the kqueue and WSAPoll
	// ones return nil.
	Deregister(fd int) error
	// Select blocks for at most timeoutMs milliseconds (0 = return
	// immediately, negative = block indefinitely) and returns the ready
	// keys observed. A concurrent Wakeup unblocks it early with an empty,
	// nil-error result.
	Select(timeoutMs int) ([]ReadyKey, error)
	// Wakeup unblocks a concurrent Select call. Safe to call from any
	// goroutine, including while Select is not currently running.
	Wakeup()
	// Close releases the underlying kernel resource.
	Close() error
}
