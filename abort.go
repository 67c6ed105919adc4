package stacktrace

import (
	"fmt"
	"strings"
	"sync"
)

// Cause describes what triggered a termination.
type Cause uint8

const (
	CauseSignal Cause = iota
	CauseException
	CauseAbort
	CauseMPI
	CauseUnknown
)

func (c Cause) String() string {
	switch c {
	case CauseSignal:
		return "signal"
	case CauseException:
		return "exception"
	case CauseAbort:
		return "abort"
	case CauseMPI:
		return "mpi"
	default:
		return "unknown"
	}
}

// StackType selects the scope of the stack captured on abort.
type StackType int

const (
	// StackThread captures only the aborting goroutine.
	StackThread StackType = iota + 1
	// StackAll captures every goroutine in the process.
	StackAll
	// StackGlobal captures every goroutine, like StackAll; stacks of other
	// MPI ranks are not gathered.
	StackGlobal
)

// SourceLocation identifies the call site that raised an abort.
type SourceLocation struct {
	File     string
	Line     int
	Function string
}

// AbortError is the record produced by the terminate path. It is built on
// the aborting goroutine and handed to the configured handler.
type AbortError struct {
	Message string
	Source  SourceLocation
	Cause   Cause
	Signal  int // signal number; 0 when Cause is not CauseSignal
	Bytes   uint64
	Stack   *MultiStack
}

func (e *AbortError) Error() string {
	var b strings.Builder
	switch e.Cause {
	case CauseSignal:
		fmt.Fprintf(&b, "Unhandled signal caught: %s (%d)\n", SignalName(e.Signal), e.Signal)
	case CauseException:
		fmt.Fprintf(&b, "Unhandled exception caught:\n")
	case CauseMPI:
		fmt.Fprintf(&b, "Error calling MPI routine:\n")
	default:
		fmt.Fprintf(&b, "Program abort called")
		if e.Source.File != "" {
			fmt.Fprintf(&b, " in file %s on line %d", e.Source.File, e.Source.Line)
		}
		b.WriteString("\n")
	}
	if e.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", e.Message)
	}
	behavior := GetAbortBehavior()
	if behavior.PrintMemory && e.Bytes > 0 {
		fmt.Fprintf(&b, "Bytes used: %d\n", e.Bytes)
	}
	if behavior.PrintStack && e.Stack != nil && !e.Stack.Empty() {
		b.WriteString("Stack Trace:\n")
		for _, line := range e.Stack.Print(" ") {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// AbortBehavior holds the process-wide knobs of the terminate path, read at
// call time.
type AbortBehavior struct {
	PrintMemory    bool
	PrintStack     bool
	ThrowException bool
	PrintOnAbort   bool
	StackType      StackType
}

var (
	behaviorMu sync.RWMutex
	behavior   = AbortBehavior{
		PrintMemory: true,
		PrintStack:  true,
		StackType:   StackAll,
	}

	handlerMu    sync.RWMutex
	errorHandler func(*AbortError)
)

// SetAbortBehavior configures the terminate path.
func SetAbortBehavior(b AbortBehavior) {
	if b.StackType < StackThread || b.StackType > StackGlobal {
		b.StackType = StackAll
	}
	behaviorMu.Lock()
	behavior = b
	behaviorMu.Unlock()
}

// GetAbortBehavior returns the current terminate-path configuration.
func GetAbortBehavior() AbortBehavior {
	behaviorMu.RLock()
	defer behaviorMu.RUnlock()
	return behavior
}

// SetDefaultStackType selects which scope abort-time captures aggregate.
func SetDefaultStackType(t StackType) {
	behaviorMu.Lock()
	defer behaviorMu.Unlock()
	if t >= StackThread && t <= StackGlobal {
		behavior.StackType = t
	}
}

// GetDefaultStackType returns the configured abort-time capture scope.
func GetDefaultStackType() StackType {
	behaviorMu.RLock()
	defer behaviorMu.RUnlock()
	return behavior.StackType
}

// SetErrorHandler installs the function that receives AbortErrors raised by
// signals and aborts. A nil handler restores the default (no handler; the
// caller of Abort owns the error).
func SetErrorHandler(handler func(*AbortError)) {
	handlerMu.Lock()
	errorHandler = handler
	handlerMu.Unlock()
}

// InvokeErrorHandler routes err to the installed handler. Reports false when
// no handler is installed.
func InvokeErrorHandler(err *AbortError) bool {
	handlerMu.RLock()
	handler := errorHandler
	handlerMu.RUnlock()
	if handler == nil {
		return false
	}
	handler(err)
	return true
}
