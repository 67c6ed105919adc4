package stacktrace

import (
	"strings"
	"testing"
)

func TestAbortBehavior(t *testing.T) {
	orig := GetAbortBehavior()
	defer SetAbortBehavior(orig)

	SetAbortBehavior(AbortBehavior{
		PrintMemory:    false,
		PrintStack:     true,
		ThrowException: true,
		StackType:      StackThread,
	})
	got := GetAbortBehavior()
	if got.PrintMemory || !got.PrintStack || !got.ThrowException {
		t.Fatalf("behavior not applied: %+v", got)
	}
	if GetDefaultStackType() != StackThread {
		t.Fatalf("stack type not applied")
	}

	// out-of-range stack types fall back to all-threads
	SetAbortBehavior(AbortBehavior{StackType: StackType(99)})
	if GetDefaultStackType() != StackAll {
		t.Fatalf("invalid stack type must fall back to StackAll")
	}
}

func TestAbortError_Format(t *testing.T) {
	orig := GetAbortBehavior()
	defer SetAbortBehavior(orig)
	SetAbortBehavior(AbortBehavior{PrintMemory: true, PrintStack: true, StackType: StackAll})

	ms := NewMultiStack([]StackFrame{{Address: 0x10, Function: "main.work"}})
	err := &AbortError{
		Message: "widget overflow",
		Source:  SourceLocation{File: "widget.go", Line: 12, Function: "main.work"},
		Cause:   CauseAbort,
		Bytes:   4096,
		Stack:   ms,
	}
	msg := err.Error()
	for _, want := range []string{"widget overflow", "widget.go", "12", "Bytes used: 4096", "Stack Trace", "main.work"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error() missing %q:\n%s", want, msg)
		}
	}

	SetAbortBehavior(AbortBehavior{PrintMemory: false, PrintStack: false, StackType: StackAll})
	msg = err.Error()
	if strings.Contains(msg, "Bytes used") || strings.Contains(msg, "Stack Trace") {
		t.Fatalf("knobs not honoured:\n%s", msg)
	}
}

func TestAbortError_SignalFormat(t *testing.T) {
	err := &AbortError{Cause: CauseSignal, Signal: 11}
	msg := err.Error()
	if !strings.Contains(msg, SignalName(11)) || !strings.Contains(msg, "11") {
		t.Fatalf("signal report must name the signal:\n%s", msg)
	}
}

func TestCauseString(t *testing.T) {
	tests := map[Cause]string{
		CauseSignal:    "signal",
		CauseException: "exception",
		CauseAbort:     "abort",
		CauseMPI:       "mpi",
		CauseUnknown:   "unknown",
		Cause(200):     "unknown",
	}
	for cause, want := range tests {
		if cause.String() != want {
			t.Fatalf("Cause(%d).String() = %q, want %q", cause, cause.String(), want)
		}
	}
}

func TestErrorHandlerRegistration(t *testing.T) {
	defer SetErrorHandler(nil)

	if InvokeErrorHandler(&AbortError{}) {
		t.Fatalf("no handler installed, invoke must report false")
	}
	var got *AbortError
	SetErrorHandler(func(e *AbortError) { got = e })
	err := &AbortError{Message: "x"}
	if !InvokeErrorHandler(err) {
		t.Fatalf("handler installed, invoke must report true")
	}
	if got != err {
		t.Fatalf("handler received wrong error")
	}
}
