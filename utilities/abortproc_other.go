//go:build !unix

package utilities

import "os"

func platformAbort() {
	// 3 is the C runtime's abort() exit status on Windows.
	os.Exit(3)
}
