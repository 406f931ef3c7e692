//go:build linux

package ioengine

import "golang.org/x/sys/unix"

func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}
