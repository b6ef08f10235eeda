//go:build linux

package selector

import (
	"golang.org/x/sys/unix"
)

// epollPoller wraps epoll. It is intentionally free of internal locking:
// the Selector contract requires every method but Wakeup to run on one
// goroutine, so Register/Modify/Deregister/Select never race each other.
// Wakeup only ever touches the eventfd, which is safe to write from any
// goroutine without coordination.
type epollPoller struct {
	epfd     int
	wake     *wakeFD
	eventBuf [256]unix.EpollEvent
	closed   bool
}

func newPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wake, err := newWakeFD()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	p := &epollPoller{epfd: epfd, wake: wake}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wake.fileDescriptor())}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wake.fileDescriptor(), ev); err != nil {
		_ = wake.close()
		_ = unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

func (p *epollPoller) Register(fd int, interest IOEvent) error {
	if p.closed {
		return ErrPollerClosed
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) Modify(fd int, interest IOEvent) error {
	if p.closed {
		return ErrPollerClosed
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Deregister(fd int) error {
	if p.closed {
		return ErrPollerClosed
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Select(timeoutMs int) ([]ReadyKey, error) {
	if p.closed {
		return nil, ErrPollerClosed
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	wakeFd := p.wake.fileDescriptor()
	ready := make([]ReadyKey, 0, n)
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd == wakeFd {
			p.wake.drain()
			continue
		}
		ready = append(ready, ReadyKey{FD: fd, Events: epollToEvents(p.eventBuf[i].Events)})
	}
	return ready, nil
}

func (p *epollPoller) Wakeup() {
	p.wake.signal()
}

func (p *epollPoller) Close() error {
	p.closed = true
	_ = p.wake.close()
	return unix.Close(p.epfd)
}

func eventsToEpoll(events IOEvent) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(flags uint32) IOEvent {
	var e IOEvent
	if flags&unix.EPOLLIN != 0 {
		e |= EventRead
	}
	if flags&unix.EPOLLOUT != 0 {
		e |= EventWrite
	}
	if flags&unix.EPOLLERR != 0 {
		e |= EventError
	}
	if flags&unix.EPOLLHUP != 0 || flags&unix.EPOLLRDHUP != 0 {
		e |= EventHangup
	}
	return e
}
