//go:build windows

// File: ioengine/raw_windows.go
//
// Non-blocking read/write primitives for Windows sockets, grounded on the
// package's use of golang.org/x/sys/windows for raw socket I/O.

package ioengine

import (
	"errors"

	"golang.org/x/sys/windows"
)

var errWouldBlock = errors.New("ioengine: operation would block")

func rawRead(fd int, buf []byte) (int, error) {
	n, err := windows.Recv(windows.Handle(fd), buf, 0)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			return 0, errWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func rawWrite(fd int, buf []byte) (int, error) {
	n, err := windows.Send(windows.Handle(fd), buf, 0)
	if err != nil {
		if err == windows.WSAEWOULDBLOCK {
			return 0, errWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func rawClose(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}
