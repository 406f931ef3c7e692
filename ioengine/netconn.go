package ioengine

import (
	"net"
	"syscall"
)

// FD extracts the raw file descriptor backing conn and switches it to
// non-blocking mode, for handing off to NewBridge/NewPump. ok is false
// for connections with no real fd to take over (net.Pipe, or anything
// that doesn't implement syscall.Conn — notably *tls.Conn, which wraps
// another net.Conn rather than exposing one directly), in which case the
// caller should fall back to conn's own blocking Read/Write.
//
// Once FD returns ok, conn must never be used or Closed again: the
// returned fd is now owned by whatever Pump/Bridge registers it, and
// closing it is that owner's job.
func FD(conn net.Conn) (fd int, ok bool) {
	sc, isSyscallConn := conn.(syscall.Conn)
	if !isSyscallConn {
		return 0, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}

	var rawFD int
	ctrlErr := rc.Control(func(p uintptr) { rawFD = int(p) })
	if ctrlErr != nil {
		return 0, false
	}

	if err := setNonblocking(rawFD); err != nil {
		return 0, false
	}
	return rawFD, true
}
