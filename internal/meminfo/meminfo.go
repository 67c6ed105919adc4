// Package meminfo reports process and system memory, one field of the abort
// record. Failures return 0 rather than an error: a crash report with a
// missing memory figure is still a crash report.
package meminfo

import "runtime"

// Usage returns the bytes currently in use by the process heap and stacks.
func Usage() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse + ms.StackInuse
}
