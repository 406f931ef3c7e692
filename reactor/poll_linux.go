//go:build linux

// File: reactor/poll_linux.go
//
// Linux epoll(7) backend. Level-triggered: a fd stays ready until the
// caller drains it, matching the FD-I/O pump's "read until EAGAIN" use.

package reactor

import (
	"golang.org/x/sys/unix"
)

const maxEpollBatch = 128

type epollBackend struct {
	epfd    int
	pending []unix.EpollEvent
}

func newPollBackend() (pollBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{epfd: epfd}, nil
}

func toEpollEvents(mask Mask) uint32 {
	var events uint32
	if mask&Read != 0 {
		events |= unix.EPOLLIN
	}
	if mask&Write != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func fromEpollEvents(events uint32) Mask {
	var mask Mask
	if events&unix.EPOLLIN != 0 {
		mask |= Read
	}
	if events&unix.EPOLLOUT != 0 {
		mask |= Write
	}
	if events&unix.EPOLLERR != 0 {
		mask |= Error
	}
	if events&unix.EPOLLHUP != 0 {
		mask |= Hup
	}
	return mask
}

func (b *epollBackend) add(fd int, mask Mask) error {
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (b *epollBackend) modify(fd int, mask Mask) error {
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (b *epollBackend) remove(fd int) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *epollBackend) wait(timeoutMs int) (readyEvent, bool, error) {
	if len(b.pending) > 0 {
		return b.pop()
	}

	raw := make([]unix.EpollEvent, maxEpollBatch)
	for {
		n, err := unix.EpollWait(b.epfd, raw, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return readyEvent{}, false, err
		}
		if n == 0 {
			return readyEvent{}, false, nil
		}
		b.pending = raw[:n]
		return b.pop()
	}
}

func (b *epollBackend) pop() (readyEvent, bool, error) {
	ev := b.pending[0]
	b.pending = b.pending[1:]
	return readyEvent{fd: int(ev.Fd), mask: fromEpollEvents(ev.Events)}, true, nil
}

func (b *epollBackend) close() error {
	return unix.Close(b.epfd)
}
