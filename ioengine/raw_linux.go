//go:build linux

// File: ioengine/raw_linux.go
//
// Non-blocking read/write primitives for Linux, grounded on the package's
// use of golang.org/x/sys/unix for raw socket I/O.

package ioengine

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errWouldBlock is returned by rawRead/rawWrite when the fd has no data
// or no buffer space ready, i.e. EAGAIN/EWOULDBLOCK.
var errWouldBlock = errors.New("ioengine: operation would block")

func rawRead(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, errWouldBlock
		}
		if err == unix.EINTR {
			return 0, errWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func rawWrite(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, errWouldBlock
		}
		if err == unix.EINTR {
			return 0, errWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func rawClose(fd int) error {
	return unix.Close(fd)
}
