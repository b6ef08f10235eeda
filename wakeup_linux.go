//go:build linux

package selector

import (
	"golang.org/x/sys/unix"
)

// wakeFD is an eventfd-backed wake primitive. Writing to it is async-signal
// and thread safe; the poller registers it for read-readiness alongside the
// connections it monitors so a concurrent Wakeup unblocks Select early.
type wakeFD struct {
	fd int
}

func newWakeFD() (*wakeFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &wakeFD{fd: fd}, nil
}

func (w *wakeFD) fileDescriptor() int { return w.fd }

// signal wakes a concurrently blocked Select. Safe from any goroutine.
func (w *wakeFD) signal() {
	var one [8]byte
	one[7] = 1
	_, _ = unix.Write(w.fd, one[:])
}

// drain clears any pending wake notifications after Select returns.
func (w *wakeFD) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(w.fd, buf[:]); err != nil {
			return
		}
	}
}

func (w *wakeFD) close() error {
	return unix.Close(w.fd)
}
