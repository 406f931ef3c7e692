//go:build windows

// File: reactor/poll_windows.go
//
// Windows backend. IOCP does not expose readiness the way epoll does, so
// this backend falls back to a select-style poll over registered fds using
// WSAPoll, keeping the same pollBackend contract as the epoll backend.

package reactor

import (
	"sync"

	"golang.org/x/sys/windows"
)

type windowsBackend struct {
	mu      sync.Mutex
	masks   map[int]Mask
	pending []readyEvent
}

func newPollBackend() (pollBackend, error) {
	return &windowsBackend{masks: make(map[int]Mask)}, nil
}

func (b *windowsBackend) add(fd int, mask Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.masks[fd] = mask
	return nil
}

func (b *windowsBackend) modify(fd int, mask Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.masks[fd] = mask
	return nil
}

func (b *windowsBackend) remove(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.masks, fd)
	return nil
}

func (b *windowsBackend) wait(timeoutMs int) (readyEvent, bool, error) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		fds := make([]windows.WSAPollFd, 0, len(b.masks))
		order := make([]int, 0, len(b.masks))
		for fd, mask := range b.masks {
			var events int16
			if mask&Read != 0 {
				events |= windows.POLLRDNORM
			}
			if mask&Write != 0 {
				events |= windows.POLLWRNORM
			}
			fds = append(fds, windows.WSAPollFd{Fd: windows.Handle(fd), Events: events})
			order = append(order, fd)
		}
		b.mu.Unlock()

		if len(fds) == 0 {
			return readyEvent{}, false, nil
		}

		n, err := windows.WSAPoll(fds, timeoutMs)
		if err != nil {
			return readyEvent{}, false, err
		}
		if n == 0 {
			return readyEvent{}, false, nil
		}

		b.mu.Lock()
		for i, pfd := range fds {
			if pfd.REvents == 0 {
				continue
			}
			var mask Mask
			if pfd.REvents&windows.POLLRDNORM != 0 {
				mask |= Read
			}
			if pfd.REvents&windows.POLLWRNORM != 0 {
				mask |= Write
			}
			if pfd.REvents&windows.POLLHUP != 0 {
				mask |= Hup
			}
			if pfd.REvents&windows.POLLERR != 0 {
				mask |= Error
			}
			b.pending = append(b.pending, readyEvent{fd: order[i], mask: mask})
		}
	}

	if len(b.pending) == 0 {
		b.mu.Unlock()
		return readyEvent{}, false, nil
	}
	ev := b.pending[0]
	b.pending = b.pending[1:]
	b.mu.Unlock()
	return ev, true, nil
}

func (b *windowsBackend) close() error {
	return nil
}
