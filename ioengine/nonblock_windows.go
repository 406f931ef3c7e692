//go:build windows

package ioengine

import "golang.org/x/sys/windows"

func setNonblocking(fd int) error {
	var mode uint32 = 1
	return windows.Ioctlsocket(windows.Handle(fd), windows.FIONBIO, &mode)
}
