//go:build !linux && !windows

package ioengine

import "syscall"

func setNonblocking(fd int) error {
	return syscall.SetNonblock(fd, true)
}
