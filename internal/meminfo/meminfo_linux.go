//go:build linux

package meminfo

import "golang.org/x/sys/unix"

// System returns the total physical memory, rounded to the unit size the
// kernel reports.
func System() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return uint64(info.Totalram) * uint64(info.Unit)
}
