//go:build unix

package stacktrace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// uncatchable or not meaningfully translatable into an abort: kill/stop,
// job control, the runtime's own timers and preemption, developer traps.
var defaultExcluded = map[unix.Signal]bool{
	unix.SIGKILL:   true,
	unix.SIGSTOP:   true,
	unix.SIGTSTP:   true,
	unix.SIGTTIN:   true,
	unix.SIGTTOU:   true,
	unix.SIGCHLD:   true,
	unix.SIGCONT:   true,
	unix.SIGWINCH:  true,
	unix.SIGURG:    true,
	unix.SIGTRAP:   true,
	unix.SIGPROF:   true,
	unix.SIGVTALRM: true,
	unix.SIGALRM:   true,
	unix.SIGUSR1:   true,
	unix.SIGUSR2:   true,
	unix.SIGIO:     true,
	unix.SIGPIPE:   true,
}

// AllSignalsToCatch returns every signal the OS permits catching.
func AllSignalsToCatch() []int {
	var signals []int
	for sig := 1; sig <= 31; sig++ {
		s := unix.Signal(sig)
		if s == unix.SIGKILL || s == unix.SIGSTOP {
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

// DefaultSignalsToCatch returns the curated subset of AllSignalsToCatch
// whose delivery should become an abort.
func DefaultSignalsToCatch() []int {
	var signals []int
	for _, sig := range AllSignalsToCatch() {
		if defaultExcluded[unix.Signal(sig)] {
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

// SignalName returns the conventional name of a signal number.
func SignalName(sig int) string {
	if name := unix.SignalName(unix.Signal(sig)); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", sig)
}
