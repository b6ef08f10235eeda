//go:build darwin

package selector

import (
	"syscall"
)

// wakeFD is a self-pipe wake primitive for kqueue, which (unlike epoll) has
// no eventfd equivalent. Writing a byte to the pipe is async-signal and
// thread safe; the poller registers the read end for read-readiness
// alongside the connections it monitors.
type wakeFD struct {
	readFD  int
	writeFD int
}

func newWakeFD() (*wakeFD, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	return &wakeFD{readFD: fds[0], writeFD: fds[1]}, nil
}

func (w *wakeFD) fileDescriptor() int { return w.readFD }

// signal wakes a concurrently blocked Select. Safe from any goroutine.
func (w *wakeFD) signal() {
	var one [1]byte
	_, _ = syscall.Write(w.writeFD, one[:])
}

// drain clears any pending wake notifications after Select returns.
func (w *wakeFD) drain() {
	var buf [64]byte
	for {
		if _, err := syscall.Read(w.readFD, buf[:]); err != nil {
			return
		}
	}
}

func (w *wakeFD) close() error {
	_ = syscall.Close(w.writeFD)
	return syscall.Close(w.readFD)
}
