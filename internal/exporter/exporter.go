// Package exporter renders aggregated stack trees in formats downstream
// tooling understands: pprof profiles, OTLP profile payloads and folded
// stacks for flamegraph scripts.
package exporter

import (
	stacktrace "github.com/berrill/StackTrace"
)

// Sample is one distinct stack with the number of threads that produced it,
// frames innermost first.
type Sample struct {
	Stack []stacktrace.StackFrame
	Count int
}

// Flatten converts a MultiStack back into distinct samples. A node whose
// count exceeds the sum of its children's marks stacks that ended there;
// those contribute a sample of their own.
func Flatten(ms *stacktrace.MultiStack) []Sample {
	var samples []Sample
	var walk func(node *stacktrace.MultiStack, path []stacktrace.StackFrame)
	walk = func(node *stacktrace.MultiStack, path []stacktrace.StackFrame) {
		childSum := 0
		for _, c := range node.Children {
			childSum += c.N
		}
		if len(path) > 0 && node.N > childSum {
			stack := make([]stacktrace.StackFrame, len(path))
			copy(stack, path)
			samples = append(samples, Sample{Stack: stack, Count: node.N - childSum})
		}
		for _, c := range node.Children {
			walk(c, append(path, c.Frame))
		}
	}
	walk(ms, nil)
	return samples
}
