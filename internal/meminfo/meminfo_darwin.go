//go:build darwin

package meminfo

import "golang.org/x/sys/unix"

func System() uint64 {
	size, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0
	}
	return size
}
