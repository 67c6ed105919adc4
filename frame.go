// Package stacktrace produces rich call-stack reports for crashes,
// assertions and on-demand introspection: it captures return addresses for
// the current goroutine or the whole process, resolves each address to a
// module, function, file and line, and folds per-thread stacks into a
// prefix-shared tree.
package stacktrace

import (
	"fmt"
	"strings"
)

// StackFrame is a single resolved frame.
type StackFrame struct {
	// Address is the virtual program counter.
	Address uint64
	// Address2 is the offset of Address from the base of the owning shared
	// object; 0 for the main executable.
	Address2 uint64
	// Object is the path of the module containing Address; empty if unknown.
	Object string
	// Function is the demangled symbol name; empty if unresolved.
	Function string
	// Filename is the source file; empty if unavailable.
	Filename string
	// Line is the 1-based source line; 0 means unknown.
	Line int
}

// Equal reports whether two frames refer to the same call site. File and
// line discrepancies between captures of the same address are ignored;
// frames synthesised without addresses compare by function name.
func (f StackFrame) Equal(rhs StackFrame) bool {
	if f.Address != 0 || rhs.Address != 0 {
		return f.Address == rhs.Address
	}
	return f.Function == rhs.Function
}

func (f StackFrame) String() string {
	s := fmt.Sprintf("0x%016x:  %s", f.Address, stripPath(f.Object))
	if len(s) < 38 {
		s += strings.Repeat(" ", 38-len(s))
	}
	s += "  " + f.Function
	switch {
	case f.Filename != "" && f.Line > 0:
		if len(s) < 70 {
			s += strings.Repeat(" ", 70-len(s))
		}
		s += fmt.Sprintf("  %s:%d", stripPath(f.Filename), f.Line)
	case f.Filename != "":
		if len(s) < 70 {
			s += strings.Repeat(" ", 70-len(s))
		}
		s += "  " + stripPath(f.Filename)
	}
	return s
}

func stripPath(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
