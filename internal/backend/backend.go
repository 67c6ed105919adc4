// Package backend provides the per-OS primitives behind stack capture:
// acquiring return addresses, mapping an address to its owning module, and
// invoking the system's offline symboliser. The platform is selected at
// build time via file build tags; every platform exposes the same five
// operations and degrades to empty data where the OS lacks a capability.
package backend

import (
	"errors"
	"runtime"
)

var (
	// ErrUnsupported reports that the platform lacks the capability.
	ErrUnsupported = errors.New("operation not supported on this platform")
	// ErrLoaderMiss reports that no module contains the address.
	ErrLoaderMiss = errors.New("no module contains address")
	// ErrSymboliserFailed reports that the external symboliser is absent or failed.
	ErrSymboliserFailed = errors.New("external symboliser failed")
	// ErrTruncated reports that a capture hit its depth limit. The returned
	// sequence is still valid.
	ErrTruncated = errors.New("stack capture truncated at depth limit")
	// ErrRecursion reports that the walker saw the same frame repeat beyond
	// the recursion limit. The partial stack up to that point is returned.
	ErrRecursion = errors.New("stack walker detected runaway recursion")
)

// maxIdenticalFrames bounds runs of identical consecutive return addresses.
// Runaway recursion otherwise floods the capture with one frame.
const maxIdenticalFrames = 1024

// ThreadHandle is an opaque platform-native thread identifier.
type ThreadHandle uint64

// ModuleInfo is a best-effort address-to-module lookup result.
type ModuleInfo struct {
	Path string // file path of the owning module; empty if unknown
	Base uint64 // load base of the module; 0 when the platform does not report one
}

// LoaderSymbol is what the runtime's own loader knows about an address.
type LoaderSymbol struct {
	Name string
	File string
	Line int
}

// Offline is one record from the external symboliser.
type Offline struct {
	Function string
	Filename string
	Line     int
}

// Backtrace returns the calling goroutine's return addresses, innermost
// first, truncated at maxDepth. skip counts additional frames to omit on top
// of Backtrace itself. The error, if any, is ErrTruncated or ErrRecursion;
// both leave the returned slice valid.
func Backtrace(skip, maxDepth int) ([]uintptr, error) {
	if maxDepth <= 0 {
		return nil, nil
	}
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, pcs)
	pcs, rerr := clampRecursion(pcs[:n])
	if rerr != nil {
		return pcs, rerr
	}
	if n == maxDepth {
		return pcs, ErrTruncated
	}
	return pcs, nil
}

// GoroutineBacktraces returns the PC stacks of every goroutine in the
// process, each innermost first and truncated at maxDepth. This is the
// all-threads capture on every platform: the runtime can snapshot its own
// goroutines but not foreign OS threads.
func GoroutineBacktraces(maxDepth int) [][]uintptr {
	n := runtime.NumGoroutine()
	var records []runtime.StackRecord
	for {
		records = make([]runtime.StackRecord, n+8)
		var ok bool
		n, ok = runtime.GoroutineProfile(records)
		if ok {
			records = records[:n]
			break
		}
	}
	stacks := make([][]uintptr, 0, len(records))
	for i := range records {
		pcs := records[i].Stack()
		if maxDepth > 0 && len(pcs) > maxDepth {
			pcs = pcs[:maxDepth]
		}
		stack := make([]uintptr, len(pcs))
		copy(stack, pcs)
		stacks = append(stacks, stack)
	}
	return stacks
}

// LoaderLookup resolves addr through the runtime's function table, the
// in-process equivalent of asking the dynamic loader. Misses for addresses
// the runtime does not own (foreign code, bogus pointers).
func LoaderLookup(addr uintptr) (LoaderSymbol, bool) {
	fn := runtime.FuncForPC(addr)
	if fn == nil {
		return LoaderSymbol{}, false
	}
	file, line := fn.FileLine(addr)
	return LoaderSymbol{Name: fn.Name(), File: file, Line: line}, true
}

func clampRecursion(pcs []uintptr) ([]uintptr, error) {
	run := 0
	for i := 1; i < len(pcs); i++ {
		if pcs[i] == pcs[i-1] {
			run++
			if run > maxIdenticalFrames {
				return pcs[:i], ErrRecursion
			}
		} else {
			run = 0
		}
	}
	return pcs, nil
}
