package stacktrace

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/berrill/StackTrace/internal/backend"
	"github.com/berrill/StackTrace/internal/symcache"
)

// defaultMaxDepth bounds every capture that does not specify its own limit.
const defaultMaxDepth = 100

// Errors surfaced by capture and resolution. All but ErrCacheLoad are
// recoverable: the returned data is valid, just degraded or partial.
var (
	ErrUnsupported = backend.ErrUnsupported
	ErrTruncated   = backend.ErrTruncated
	ErrRecursion   = backend.ErrRecursion
	ErrCacheLoad   = symcache.ErrCacheLoad
)

// ThreadHandle is an opaque platform-native thread identifier.
type ThreadHandle = backend.ThreadHandle

// SymbolRecord is one entry of the executable's symbol table. Kind is the
// single-character linkage type reported by nm and is carried opaquely.
type SymbolRecord struct {
	Address uint64
	Kind    byte
	Name    string
}

var (
	exeOnce sync.Once
	exePath string

	symbolsOnce sync.Once
	symbolCache *symcache.Cache
)

// GetExecutable returns the path of the current executable, usually absolute.
func GetExecutable() string {
	exeOnce.Do(func() {
		exe, err := os.Executable()
		if err != nil {
			slog.Warn("Failed to determine executable path", "error", err)
			return
		}
		exePath = exe
	})
	return exePath
}

func symbols() *symcache.Cache {
	symbolsOnce.Do(func() {
		symbolCache = symcache.NewCache(symcache.NewNMLister(GetExecutable()))
	})
	return symbolCache
}

// GetSymbols returns the symbol table of the current executable, sorted
// ascending by address. The table is built on first call and cached; a
// failed build is also cached and reported until ClearSymbols.
func GetSymbols() ([]SymbolRecord, error) {
	table, err := symbols().Load()
	if err != nil {
		return nil, err
	}
	records := table.Records()
	out := make([]SymbolRecord, len(records))
	for i, r := range records {
		out[i] = SymbolRecord{Address: r.Addr, Kind: r.Kind, Name: r.Name}
	}
	return out, nil
}

// ClearSymbols resets the symbol cache to its pre-load state. Safe under
// concurrent readers.
func ClearSymbols() {
	symbols().Clear()
}

// Backtrace returns the current goroutine's return addresses, innermost
// first. The error, if any, is ErrTruncated or ErrRecursion; the returned
// slice is valid either way.
func Backtrace() ([]uintptr, error) {
	return backend.Backtrace(1, defaultMaxDepth)
}

// BacktraceThread returns the return addresses of the given thread. Only the
// calling thread can be walked directly; other handles yield ErrUnsupported.
func BacktraceThread(h ThreadHandle) ([]uintptr, error) {
	return backend.ThreadBacktrace(h, defaultMaxDepth)
}

// BacktraceAll returns the PC stacks of every goroutine in the process.
func BacktraceAll() [][]uintptr {
	return backend.GoroutineBacktraces(defaultMaxDepth)
}

// ActiveThreads returns the platform-native handles of the process's
// threads. The calling thread is always included where the platform supports
// enumeration.
func ActiveThreads() ([]ThreadHandle, error) {
	return backend.Threads()
}

// ThisThread returns the handle of the calling OS thread.
func ThisThread() ThreadHandle {
	return backend.CurrentThread()
}

// GetStackInfo resolves a single address into a frame. The frame is returned
// even when nothing could be resolved; only Address is then populated.
func GetStackInfo(addr uintptr) StackFrame {
	return resolve(uint64(addr), uint64(addr))
}

// GetStackInfoAll resolves a captured address sequence. All but the first
// address are return addresses: resolution looks up the preceding byte so
// the reported location is the call, not the instruction after it.
func GetStackInfoAll(addrs []uintptr) []StackFrame {
	frames := make([]StackFrame, 0, len(addrs))
	for i, addr := range addrs {
		lookup := uint64(addr)
		if i > 0 && lookup > 0 {
			lookup--
		}
		frames = append(frames, resolve(uint64(addr), lookup))
	}
	return frames
}

// GetCallStack returns the resolved call stack of the current goroutine,
// innermost first.
func GetCallStack() []StackFrame {
	pcs, err := backend.Backtrace(1, defaultMaxDepth)
	if err != nil {
		slog.Debug("Partial stack capture", "frames", len(pcs), "reason", err)
	}
	return GetStackInfoAll(pcs)
}

// GetCallStackForThread returns the resolved call stack of the given thread.
func GetCallStackForThread(h ThreadHandle) ([]StackFrame, error) {
	pcs, err := backend.ThreadBacktrace(h, defaultMaxDepth)
	if err != nil && len(pcs) == 0 {
		return nil, err
	}
	return GetStackInfoAll(pcs), nil
}

// GetAllCallStacks captures and resolves the stacks of every goroutine and
// folds them into a MultiStack whose root count is the number of stacks.
func GetAllCallStacks() *MultiStack {
	stacks := backend.GoroutineBacktraces(defaultMaxDepth)
	ms := NewMultiStack()
	for _, pcs := range stacks {
		ms.Add(GetStackInfoAll(pcs))
	}
	return ms
}

// resolve combines the loader, the symbol cache and the external symboliser
// per the resolution order: loader names win over cache names; the external
// symboliser fills names only when both missed, and is the sole source of
// file/line for frames the runtime does not own.
func resolve(addr, lookup uint64) StackFrame {
	frame := StackFrame{Address: addr}
	if addr == 0 {
		return frame
	}

	mod, modErr := backend.ModuleRegion(lookup)
	if modErr == nil {
		frame.Object = mod.Path
		if mod.Path != GetExecutable() && mod.Base > 0 && lookup >= mod.Base {
			frame.Address2 = addr - mod.Base
		}
	}

	if sym, ok := backend.LoaderLookup(uintptr(lookup)); ok {
		frame.Function = sym.Name
		frame.Filename = sym.File
		frame.Line = sym.Line
		if frame.Object == "" {
			frame.Object = GetExecutable()
		}
	} else if rec, ok := symbols().Lookup(lookup); ok {
		frame.Function = rec.Name
		if frame.Object == "" {
			frame.Object = GetExecutable()
		}
	}

	if frame.Filename == "" {
		offlineAddr := lookup
		object := frame.Object
		if object == "" {
			object = GetExecutable()
		}
		// shared objects want load-relative addresses
		if frame.Address2 != 0 && strings.Contains(object, ".so") {
			offlineAddr = frame.Address2
		}
		if off, err := backend.SymboliseOffline(object, offlineAddr); err == nil {
			if frame.Function == "" {
				frame.Function = off.Function
			}
			if off.Filename != "" {
				frame.Filename = off.Filename
				frame.Line = off.Line
			}
		}
	}

	if frame.Filename == "" {
		frame.Line = 0
	}
	return frame
}
