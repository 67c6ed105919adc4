//go:build unix || windows

package utilities

import "syscall"

const (
	sigSegv = int(syscall.SIGSEGV)
	sigFpe  = int(syscall.SIGFPE)
	sigAbrt = int(syscall.SIGABRT)
)
