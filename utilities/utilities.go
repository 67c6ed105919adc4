// Package utilities is the call-site façade over the trace core: abort with
// a captured stack, a serialized terminate path, error-handler installation,
// and the memory/exec helpers the abort record depends on.
package utilities

import (
	"fmt"
	"runtime"
	"strings"

	stacktrace "github.com/berrill/StackTrace"
	"github.com/berrill/StackTrace/internal/execcmd"
	"github.com/berrill/StackTrace/internal/meminfo"
)

// Abort builds an AbortError carrying the caller's source location, the
// current memory use and a stack at the configured scope, then raises it as
// a panic. Abort is not a normal return: a top-level guard (PanicHandler or
// an application recover) is obligated to route the error to Terminate or
// the installed handler.
func Abort(message string) {
	panic(NewAbortError(message, 1))
}

// NewAbortError builds the abort record without raising it. skip counts
// stack frames above the caller to attribute the source location to.
func NewAbortError(message string, skip int) *stacktrace.AbortError {
	err := &stacktrace.AbortError{
		Message: message,
		Cause:   stacktrace.CauseAbort,
		Bytes:   GetMemoryUsage(),
		Source:  callerLocation(skip + 2),
		Stack:   buildAbortStack(),
	}
	if stacktrace.GetAbortBehavior().PrintOnAbort {
		fmt.Print(err.Error())
	}
	return err
}

func callerLocation(skip int) stacktrace.SourceLocation {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return stacktrace.SourceLocation{}
	}
	loc := stacktrace.SourceLocation{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

func buildAbortStack() *stacktrace.MultiStack {
	var ms *stacktrace.MultiStack
	switch stacktrace.GetDefaultStackType() {
	case stacktrace.StackThread:
		ms = stacktrace.NewMultiStack(stacktrace.GetCallStack())
	default:
		// StackAll and StackGlobal both snapshot the whole process; no
		// stacks are gathered from other MPI ranks.
		ms = stacktrace.GetAllCallStacks()
	}
	stacktrace.CleanupStackTrace(ms)
	return ms
}

// SetAbortBehavior configures the terminate path: whether reports include
// memory use and a stack, whether Terminate re-raises instead of invoking
// MPI, whether Abort prints immediately, and the capture scope.
func SetAbortBehavior(printMemory, printStack, throwException, printOnAbort bool, stackType stacktrace.StackType) {
	stacktrace.SetAbortBehavior(stacktrace.AbortBehavior{
		PrintMemory:    printMemory,
		PrintStack:     printStack,
		ThrowException: throwException,
		PrintOnAbort:   printOnAbort,
		StackType:      stackType,
	})
}

// GetMemoryUsage returns the bytes currently in use by the process.
func GetMemoryUsage() uint64 {
	return meminfo.Usage()
}

// GetSystemMemory returns the total physical memory of the machine.
func GetSystemMemory() uint64 {
	return meminfo.System()
}

// Exec runs a shell command, waits for it and returns the captured output
// and exit code. Must not be called from a signal handler.
func Exec(cmd string) (string, int, error) {
	return execcmd.NewSystemRunner().Run("sh", "-c", cmd)
}

var segfaultTarget *int

// CauseSegfault dereferences nil. Test aid for exercising the crash path.
func CauseSegfault() {
	*segfaultTarget = 0
}

// PanicHandler converts an in-flight panic into an AbortError and routes it
// to the installed error handler, or to Terminate when none is installed.
// Use as `defer utilities.PanicHandler()` at goroutine entry points.
func PanicHandler() {
	r := recover()
	if r == nil {
		return
	}
	err := toAbortError(r)
	if !stacktrace.InvokeErrorHandler(err) {
		Terminate(err)
	}
}

func toAbortError(r any) *stacktrace.AbortError {
	if err, ok := r.(*stacktrace.AbortError); ok {
		return err
	}
	err := &stacktrace.AbortError{
		Message: fmt.Sprint(r),
		Cause:   stacktrace.CauseException,
		Bytes:   GetMemoryUsage(),
		Stack:   buildAbortStack(),
	}
	if re, ok := r.(runtime.Error); ok {
		// the runtime reports memory faults as panics rather than signals
		msg := re.Error()
		switch {
		case strings.Contains(msg, "invalid memory address"), strings.Contains(msg, "segmentation"):
			err.Cause = stacktrace.CauseSignal
			err.Signal = sigSegv
		case strings.Contains(msg, "divide by zero"):
			err.Cause = stacktrace.CauseSignal
			err.Signal = sigFpe
		}
	}
	return err
}
