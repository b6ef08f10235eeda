//go:build darwin

package selector

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller wraps kqueue. Like epollPoller, it carries no internal
// locking: only Wakeup may be called off the owning goroutine.
type kqueuePoller struct {
	kq       int
	wake     *wakeFD
	eventBuf [256]unix.Kevent_t
	closed   bool
}

func newPoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	wake, err := newWakeFD()
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	p := &kqueuePoller{kq: kq, wake: wake}
	kev := unix.Kevent_t{Ident: uint64(wake.fileDescriptor()), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		_ = wake.close()
		_ = unix.Close(kq)
		return nil, err
	}
	return p, nil
}

func (p *kqueuePoller) Register(fd int, interest IOEvent) error {
	if p.closed {
		return ErrPollerClosed
	}
	kevents := eventsToKevents(fd, interest, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, kevents, nil, nil)
	return err
}

func (p *kqueuePoller) Modify(fd int, interest IOEvent) error {
	if p.closed {
		return ErrPollerClosed
	}
	// kqueue has no "modify" verb: delete both filters then re-add the
	// ones wanted. Deletes on a filter that was never added are ignored.
	del := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, del, nil, nil)
	return p.Register(fd, interest)
}

func (p *kqueuePoller) Deregister(fd int) error {
	if p.closed {
		return ErrPollerClosed
	}
	del := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, del, nil, nil)
	return nil
}

func (p *kqueuePoller) Select(timeoutMs int) ([]ReadyKey, error) {
	if p.closed {
		return nil, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1_000_000))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	wakeFd := uint64(p.wake.fileDescriptor())
	byFD := make(map[int]IOEvent, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		kev := &p.eventBuf[i]
		if kev.Ident == wakeFd {
			p.wake.drain()
			continue
		}
		fd := int(kev.Ident)
		if _, seen := byFD[fd]; !seen {
			order = append(order, fd)
		}
		byFD[fd] |= keventToEvents(kev)
	}
	ready := make([]ReadyKey, 0, len(order))
	for _, fd := range order {
		ready = append(ready, ReadyKey{FD: fd, Events: byFD[fd]})
	}
	return ready, nil
}

func (p *kqueuePoller) Wakeup() {
	p.wake.signal()
}

func (p *kqueuePoller) Close() error {
	p.closed = true
	_ = p.wake.close()
	return unix.Close(p.kq)
}

func eventsToKevents(fd int, events IOEvent, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvent {
	var e IOEvent
	switch kev.Filter {
	case unix.EVFILT_READ:
		e |= EventRead
	case unix.EVFILT_WRITE:
		e |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		e |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		e |= EventHangup
	}
	return e
}
