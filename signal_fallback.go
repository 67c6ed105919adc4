//go:build !unix && !windows

package stacktrace

import "fmt"

func AllSignalsToCatch() []int { return nil }

func DefaultSignalsToCatch() []int { return nil }

func SignalName(sig int) string {
	return fmt.Sprintf("signal %d", sig)
}
