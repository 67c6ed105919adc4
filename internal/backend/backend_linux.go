//go:build linux

package backend

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	mapsOnce sync.Once
	mapsSelf *MapRegions

	addr2line = NewAddr2Line()
)

func selfMaps() *MapRegions {
	mapsOnce.Do(func() {
		lines, err := readLines("/proc/self/maps")
		if err != nil {
			mapsSelf = NewMapRegions(nil)
			return
		}
		mapsSelf = NewMapRegions(lines)
	})
	return mapsSelf
}

// ModuleRegion looks up the module mapping that contains addr using the
// process memory map.
func ModuleRegion(addr uint64) (ModuleInfo, error) {
	r := selfMaps().FindRegion(addr)
	if r == nil || r.Path == "" || strings.HasPrefix(r.Path, "[") {
		return ModuleInfo{}, ErrLoaderMiss
	}
	base, ok := selfMaps().BaseOf(r.Path)
	if !ok {
		base = r.Start
	}
	return ModuleInfo{Path: r.Path, Base: base}, nil
}

// ThreadBacktrace captures the stack of another thread in the process. The
// runtime schedules goroutines freely across threads, so only the calling
// thread can be walked directly; all-thread scope goes through
// GoroutineBacktraces.
func ThreadBacktrace(h ThreadHandle, maxDepth int) ([]uintptr, error) {
	if h == CurrentThread() {
		return Backtrace(1, maxDepth)
	}
	return nil, ErrUnsupported
}

// Threads enumerates the OS threads of the process from /proc/self/task.
func Threads() ([]ThreadHandle, error) {
	entries, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return []ThreadHandle{CurrentThread()}, nil
	}
	handles := make([]ThreadHandle, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		handles = append(handles, ThreadHandle(tid))
	}
	return handles, nil
}

// CurrentThread returns the handle of the calling OS thread.
func CurrentThread() ThreadHandle {
	return ThreadHandle(uint64(unix.Gettid()))
}

// SymboliseOffline resolves (object, addr) through addr2line. For shared
// objects the caller passes the module-relative address.
func SymboliseOffline(object string, addr uint64) (Offline, error) {
	return addr2line.Symbolise(object, addr)
}

// RaiseSignal delivers sig to the process.
func RaiseSignal(sig int) error {
	return unix.Kill(unix.Getpid(), unix.Signal(sig))
}
