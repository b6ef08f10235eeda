//go:build windows

package selector

import (
	"net"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WSAPoll is not surfaced by golang.org/x/sys/windows, so it is loaded
// from ws2_32.dll directly.
var (
	modws2_32   = windows.NewLazySystemDLL("ws2_32.dll")
	procWSAPoll = modws2_32.NewProc("WSAPoll")
)

// Poll flags from winsock2.h.
const (
	pollRDNORM = 0x0100
	pollWRNORM = 0x0010
	pollERR    = 0x0001
	pollHUP    = 0x0002
	pollNVAL   = 0x0004
)

// wsaPollFd mirrors WSAPOLLFD from winsock2.h.
type wsaPollFd struct {
	fd      uintptr
	events  int16
	revents int16
}

// wsaPoller wraps WSAPoll. The Selector is readiness-based, like
// epoll/kqueue: a Channel decides when to read/write once told a socket is
// ready. WSAPoll is the direct Windows analogue of poll(2) and matches that
// model far more closely than IOCP's completion-based one, so it is the
// Windows mechanism here.
type wsaPoller struct {
	wake    *wakeFD
	fds     map[int]IOEvent
	pollFds []wsaPollFd
	closed  bool
}

func newPoller() (Poller, error) {
	wake, err := newWakeFD()
	if err != nil {
		return nil, err
	}
	return &wsaPoller{wake: wake, fds: make(map[int]IOEvent)}, nil
}

func (p *wsaPoller) Register(fd int, interest IOEvent) error {
	if p.closed {
		return ErrPollerClosed
	}
	p.fds[fd] = interest
	return nil
}

func (p *wsaPoller) Modify(fd int, interest IOEvent) error {
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; !ok {
		return ErrFDNotRegistered
	}
	p.fds[fd] = interest
	return nil
}

func (p *wsaPoller) Deregister(fd int) error {
	if p.closed {
		return ErrPollerClosed
	}
	delete(p.fds, fd)
	return nil
}

func (p *wsaPoller) Select(timeoutMs int) ([]ReadyKey, error) {
	if p.closed {
		return nil, ErrPollerClosed
	}

	wakeFd := p.wake.fileDescriptor()
	p.pollFds = p.pollFds[:0]
	p.pollFds = append(p.pollFds, wsaPollFd{fd: uintptr(wakeFd), events: pollRDNORM})
	order := make([]int, 0, len(p.fds))
	for fd, interest := range p.fds {
		order = append(order, fd)
		p.pollFds = append(p.pollFds, wsaPollFd{fd: uintptr(fd), events: eventsToWSAEvents(interest)})
	}

	if timeoutMs < 0 {
		timeoutMs = -1
	}
	r1, _, callErr := procWSAPoll.Call(
		uintptr(unsafe.Pointer(&p.pollFds[0])),
		uintptr(len(p.pollFds)),
		uintptr(uint32(int32(timeoutMs))),
	)
	if int32(r1) < 0 {
		return nil, callErr
	}
	if r1 == 0 {
		return nil, nil
	}

	ready := make([]ReadyKey, 0, r1)
	if p.pollFds[0].revents != 0 {
		p.wake.drain()
	}
	for i, fd := range order {
		revents := p.pollFds[i+1].revents
		if revents == 0 {
			continue
		}
		ready = append(ready, ReadyKey{FD: fd, Events: wsaEventsToEvents(revents)})
	}
	return ready, nil
}

func (p *wsaPoller) Wakeup() {
	p.wake.signal()
}

func (p *wsaPoller) Close() error {
	p.closed = true
	return p.wake.close()
}

func eventsToWSAEvents(events IOEvent) int16 {
	var e int16
	if events&EventRead != 0 {
		e |= pollRDNORM
	}
	if events&EventWrite != 0 {
		e |= pollWRNORM
	}
	return e
}

func wsaEventsToEvents(revents int16) IOEvent {
	var e IOEvent
	if revents&pollRDNORM != 0 {
		e |= EventRead
	}
	if revents&pollWRNORM != 0 {
		e |= EventWrite
	}
	if revents&pollERR != 0 {
		e |= EventError
	}
	if revents&(pollHUP|pollNVAL) != 0 {
		e |= EventHangup
	}
	return e
}

// socketHandle extracts the raw SOCKET handle backing a net.Conn so it can
// be fed to WSAPoll, which operates on SOCKETs rather than Go's *net.TCPConn.
func socketHandle(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	fd, err := socketFD(sc)
	if err != nil {
		return -1
	}
	return fd
}
