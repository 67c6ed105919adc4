//go:build windows

package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// The Windows backend drives DbgHelp and is stateful: symbol handling must
// be initialised once for the process and fed the module list before any
// address can be resolved.
type winState int

const (
	winUninit winState = iota
	winInitialising
	winReady
	winFailed
)

type moduleRange struct {
	base uint64
	size uint64
	path string
}

var (
	winMu      sync.Mutex
	winStatus  winState
	winModules []moduleRange

	dbghelp                 = windows.NewLazySystemDLL("dbghelp.dll")
	procSymInitializeW      = dbghelp.NewProc("SymInitializeW")
	procSymSetOptions       = dbghelp.NewProc("SymSetOptions")
	procSymFromAddrW        = dbghelp.NewProc("SymFromAddrW")
	procSymGetLineFromAddrW = dbghelp.NewProc("SymGetLineFromAddrW64")
	procSymLoadModuleExW    = dbghelp.NewProc("SymLoadModuleExW")
)

const (
	symoptLoadLines          = 0x00000010
	symoptFailCriticalErrors = 0x00000200
	maxSymNameLen            = 1024
)

type symbolInfoW struct {
	SizeOfStruct uint32
	TypeIndex    uint32
	Reserved     [2]uint64
	Index        uint32
	Size         uint32
	ModBase      uint64
	Flags        uint32
	Value        uint64
	Address      uint64
	Register     uint32
	Scope        uint32
	Tag          uint32
	NameLen      uint32
	MaxNameLen   uint32
	Name         [maxSymNameLen]uint16
}

type imagehlpLineW64 struct {
	SizeOfStruct uint32
	Key          uintptr
	LineNumber   uint32
	FileName     *uint16
	Address      uint64
}

// ensureReady drives the Uninit -> Initialising -> Ready/Failed transitions.
// After a double enumeration failure the backend permanently behaves as the
// fallback.
func ensureReady() bool {
	winMu.Lock()
	defer winMu.Unlock()
	switch winStatus {
	case winReady:
		return true
	case winFailed:
		return false
	}
	winStatus = winInitialising

	paths, _ := windows.UTF16PtrFromString(SymSearchPath())
	self := windows.CurrentProcess()
	ret, _, _ := procSymInitializeW.Call(uintptr(self), uintptr(unsafe.Pointer(paths)), 0)
	if ret == 0 {
		winStatus = winFailed
		return false
	}
	procSymSetOptions.Call(uintptr(symoptLoadLines | symoptFailCriticalErrors))

	modules, err := modulesTH32()
	if err != nil {
		modules, err = modulesPSAPI()
	}
	if err != nil || len(modules) == 0 {
		winStatus = winFailed
		return false
	}
	for _, m := range modules {
		img, _ := windows.UTF16PtrFromString(m.path)
		procSymLoadModuleExW.Call(uintptr(self), 0, uintptr(unsafe.Pointer(img)), 0,
			uintptr(m.base), uintptr(m.size), 0, 0)
	}
	winModules = modules
	winStatus = winReady
	return true
}

// SymSearchPath assembles the DbgHelp symbol search path: current directory,
// executable directory, _NT_SYMBOL_PATH, _NT_ALTERNATE_SYMBOL_PATH,
// SYSTEMROOT, SYSTEMROOT\system32 and the Microsoft symbol server.
func SymSearchPath() string {
	var parts []string
	parts = append(parts, ".")
	if wd, err := os.Getwd(); err == nil {
		parts = append(parts, wd)
	}
	if exe, err := os.Executable(); err == nil {
		parts = append(parts, filepath.Dir(exe))
	}
	for _, env := range []string{"_NT_SYMBOL_PATH", "_NT_ALTERNATE_SYMBOL_PATH"} {
		if v := os.Getenv(env); v != "" {
			parts = append(parts, v)
		}
	}
	if root := os.Getenv("SYSTEMROOT"); root != "" {
		parts = append(parts, root, root+`\system32`)
	}
	if drive := os.Getenv("SYSTEMDRIVE"); drive != "" {
		parts = append(parts, "SRV*"+drive+`\websymbols*http://msdl.microsoft.com/download/symbols`)
	} else {
		parts = append(parts, `SRV*c:\websymbols*http://msdl.microsoft.com/download/symbols`)
	}
	return strings.Join(parts, ";")
}

func modulesTH32() ([]moduleRange, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE, windows.GetCurrentProcessId())
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snapshot)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))
	if err := windows.Module32First(snapshot, &me); err != nil {
		return nil, err
	}
	var modules []moduleRange
	for {
		modules = append(modules, moduleRange{
			base: uint64(me.ModBaseAddr),
			size: uint64(me.ModBaseSize),
			path: windows.UTF16ToString(me.ExePath[:]),
		})
		if err := windows.Module32Next(snapshot, &me); err != nil {
			break
		}
	}
	return modules, nil
}

func modulesPSAPI() ([]moduleRange, error) {
	self := windows.CurrentProcess()
	handles := make([]windows.Handle, 1024)
	var needed uint32
	cb := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
	if err := windows.EnumProcessModules(self, &handles[0], cb, &needed); err != nil {
		return nil, err
	}
	count := int(needed / uint32(unsafe.Sizeof(handles[0])))
	if count > len(handles) {
		count = len(handles)
	}
	var modules []moduleRange
	for _, h := range handles[:count] {
		var mi windows.ModuleInfo
		if err := windows.GetModuleInformation(self, h, &mi, uint32(unsafe.Sizeof(mi))); err != nil {
			continue
		}
		var buf [windows.MAX_LONG_PATH]uint16
		if err := windows.GetModuleFileNameEx(self, h, &buf[0], uint32(len(buf))); err != nil {
			continue
		}
		modules = append(modules, moduleRange{
			base: uint64(mi.BaseOfDll),
			size: uint64(mi.SizeOfImage),
			path: windows.UTF16ToString(buf[:]),
		})
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("no modules enumerated")
	}
	return modules, nil
}

func ModuleRegion(addr uint64) (ModuleInfo, error) {
	if !ensureReady() {
		return ModuleInfo{}, ErrLoaderMiss
	}
	winMu.Lock()
	defer winMu.Unlock()
	for _, m := range winModules {
		if addr >= m.base && addr < m.base+m.size {
			return ModuleInfo{Path: m.path, Base: m.base}, nil
		}
	}
	return ModuleInfo{}, ErrLoaderMiss
}

func ThreadBacktrace(h ThreadHandle, maxDepth int) ([]uintptr, error) {
	if h == CurrentThread() {
		return Backtrace(1, maxDepth)
	}
	return nil, ErrUnsupported
}

// Threads enumerates the process threads through a toolhelp snapshot.
func Threads() ([]ThreadHandle, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPTHREAD, 0)
	if err != nil {
		return []ThreadHandle{CurrentThread()}, nil
	}
	defer windows.CloseHandle(snapshot)

	pid := windows.GetCurrentProcessId()
	var te windows.ThreadEntry32
	te.Size = uint32(unsafe.Sizeof(te))
	if err := windows.Thread32First(snapshot, &te); err != nil {
		return []ThreadHandle{CurrentThread()}, nil
	}
	var handles []ThreadHandle
	for {
		if te.OwnerProcessID == pid {
			handles = append(handles, ThreadHandle(te.ThreadID))
		}
		if err := windows.Thread32Next(snapshot, &te); err != nil {
			break
		}
	}
	if len(handles) == 0 {
		handles = append(handles, CurrentThread())
	}
	return handles, nil
}

func CurrentThread() ThreadHandle {
	return ThreadHandle(windows.GetCurrentThreadId())
}

// SymboliseOffline resolves an address through DbgHelp: SymFromAddrW for the
// name, SymGetLineFromAddrW64 for file and line.
func SymboliseOffline(object string, addr uint64) (Offline, error) {
	if !ensureReady() {
		return Offline{}, ErrSymboliserFailed
	}
	winMu.Lock()
	defer winMu.Unlock()
	self := windows.CurrentProcess()

	var off Offline
	var sym symbolInfoW
	sym.SizeOfStruct = uint32(unsafe.Offsetof(sym.Name))
	sym.MaxNameLen = maxSymNameLen
	var displacement uint64
	ret, _, _ := procSymFromAddrW.Call(uintptr(self), uintptr(addr),
		uintptr(unsafe.Pointer(&displacement)), uintptr(unsafe.Pointer(&sym)))
	if ret != 0 {
		n := sym.NameLen
		if n > maxSymNameLen {
			n = maxSymNameLen
		}
		off.Function = windows.UTF16ToString(sym.Name[:n])
	}

	var line imagehlpLineW64
	line.SizeOfStruct = uint32(unsafe.Sizeof(line))
	var lineDisp uint32
	ret, _, _ = procSymGetLineFromAddrW.Call(uintptr(self), uintptr(addr),
		uintptr(unsafe.Pointer(&lineDisp)), uintptr(unsafe.Pointer(&line)))
	if ret != 0 && line.FileName != nil {
		off.Filename = windows.UTF16PtrToString(line.FileName)
		off.Line = int(line.LineNumber)
	}
	if off.Function == "" && off.Filename == "" {
		return off, ErrSymboliserFailed
	}
	return off, nil
}

// RaiseSignal delivers sig to the process via the C runtime emulation.
func RaiseSignal(sig int) error {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	return p.Signal(syscall.Signal(sig))
}
