//go:build unix

package utilities

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// platformAbort ends the process the way C abort() does: restore the
// default SIGABRT disposition and deliver it. The exit falls back to a
// plain exit with the conventional 128+SIGABRT status if delivery fails.
func platformAbort() {
	signal.Reset(syscall.SIGABRT)
	_ = unix.Kill(unix.Getpid(), unix.SIGABRT)
	os.Exit(128 + sigAbrt)
}
