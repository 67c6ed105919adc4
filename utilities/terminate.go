package utilities

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	stacktrace "github.com/berrill/StackTrace"
)

var (
	terminateMu sync.Mutex
	forceExit   atomic.Int32

	// abortProcess is swapped out by tests; the real thing does not return.
	abortProcess = platformAbort
)

// Terminate prints the abort record and ends the process. Only one
// termination sequence proceeds to completion: concurrent or re-entrant
// calls bypass all formatting and go straight to the platform abort
// primitive. Terminate never fails; when everything else breaks it still
// falls through to the abort primitive.
func Terminate(err *stacktrace.AbortError) {
	if forceExit.Add(1) > 1 {
		abortProcess()
		return
	}
	terminateMu.Lock()
	// Not unlocked: the process is going down and a second entrant must not
	// start a second report.
	ClearErrorHandlers()
	stacktrace.ClearSignals()

	fmt.Fprint(os.Stderr, err.Error())
	if !stacktrace.GetAbortBehavior().ThrowException {
		if bridge := stacktrace.GetMPIBridge(); bridge != nil && stacktrace.MPIActive() {
			bridge.ClearErrorHandlers()
			// terminates all ranks; fall through in case it does not
			_ = bridge.Abort(-1)
		}
	}
	abortProcess()
}

// SetErrorHandlers installs handler as the receiver of abort records from
// signals and panics, and sets MPI communicator error handlers when a
// bridge is installed. A nil handler means Terminate.
func SetErrorHandlers(handler func(*stacktrace.AbortError)) {
	if handler == nil {
		handler = Terminate
	}
	stacktrace.SetErrorHandler(handler)
	if bridge := stacktrace.GetMPIBridge(); bridge != nil {
		bridge.SetErrorHandlers(handler)
	}
	stacktrace.SetSignals(stacktrace.DefaultSignalsToCatch(), signalToAbort)
}

// ClearErrorHandlers removes the installed handler and restores signal and
// MPI dispositions. Safe to call during termination.
func ClearErrorHandlers() {
	stacktrace.SetErrorHandler(nil)
	if bridge := stacktrace.GetMPIBridge(); bridge != nil {
		bridge.ClearErrorHandlers()
	}
	stacktrace.ClearSignals()
}

func signalToAbort(sig int) {
	err := &stacktrace.AbortError{
		Message: fmt.Sprintf("Caught %s", stacktrace.SignalName(sig)),
		Cause:   stacktrace.CauseSignal,
		Signal:  sig,
		Bytes:   GetMemoryUsage(),
		Stack:   buildAbortStack(),
	}
	if !stacktrace.InvokeErrorHandler(err) {
		Terminate(err)
	}
}
