//go:build !unix && !windows

package utilities

const (
	sigSegv = 11
	sigFpe  = 8
	sigAbrt = 6
)
