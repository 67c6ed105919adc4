//go:build darwin

package backend

import (
	"os"

	"golang.org/x/sys/unix"
)

// atosEnabled gates the atos offline symboliser. Line info for Go frames
// comes from the runtime already; atos stays off unless someone needs cgo
// line numbers badly enough to flip it.
const atosEnabled = false

var atosRunner = NewAtos()

// ModuleRegion on Darwin identifies only the main executable: there is no
// /proc and the dyld image list is not reachable without cgo. Addresses the
// runtime owns belong to the executable; everything else is a miss.
func ModuleRegion(addr uint64) (ModuleInfo, error) {
	if _, ok := LoaderLookup(uintptr(addr)); !ok {
		return ModuleInfo{}, ErrLoaderMiss
	}
	exe, err := os.Executable()
	if err != nil {
		return ModuleInfo{}, ErrLoaderMiss
	}
	return ModuleInfo{Path: exe, Base: 0}, nil
}

// ThreadBacktrace supports only the calling thread; Darwin has no
// cross-thread unwinding without the mach thread APIs.
func ThreadBacktrace(h ThreadHandle, maxDepth int) ([]uintptr, error) {
	if h == CurrentThread() {
		return Backtrace(1, maxDepth)
	}
	return nil, ErrUnsupported
}

func Threads() ([]ThreadHandle, error) {
	return []ThreadHandle{CurrentThread()}, nil
}

func CurrentThread() ThreadHandle {
	// Darwin exposes no stable thread id to pure Go; a process-scoped handle
	// stands in, which is sufficient for the self-capture paths.
	return ThreadHandle(uint64(os.Getpid()))
}

func SymboliseOffline(object string, addr uint64) (Offline, error) {
	if !atosEnabled {
		return Offline{}, ErrSymboliserFailed
	}
	return atosRunner.Symbolise(object, addr)
}

// RaiseSignal delivers sig to the process.
func RaiseSignal(sig int) error {
	return unix.Kill(unix.Getpid(), unix.Signal(sig))
}
