package stacktrace

import (
	"fmt"
	"sort"
	"strings"
)

// MultiStack folds multiple call stacks into a prefix-shared tree. The root
// node carries no frame; each child holds one frame and the count N of
// stacks that include that frame at that depth. Stacks are inserted
// innermost first, so the shared capture machinery ends up on the root
// chain and divergence happens toward main.
type MultiStack struct {
	N        int
	Frame    StackFrame
	Children []*MultiStack
}

// NewMultiStack builds a tree from the given stacks, each ordered innermost
// first. The root's N equals the number of stacks.
func NewMultiStack(stacks ...[]StackFrame) *MultiStack {
	ms := &MultiStack{}
	for _, s := range stacks {
		ms.Add(s)
	}
	return ms
}

// Empty reports whether any stack has been added.
func (m *MultiStack) Empty() bool { return m.N == 0 }

// Clear resets the tree.
func (m *MultiStack) Clear() {
	m.N = 0
	m.Frame = StackFrame{}
	m.Children = nil
}

// Add inserts one stack (innermost first) as a path from the root,
// incrementing counts along shared prefixes and branching at the first
// difference. Children stay presented in deterministic order: descending N,
// ties by ascending address.
func (m *MultiStack) Add(stack []StackFrame) {
	m.N++
	node := m
	for _, frame := range stack {
		child := node.findChild(frame)
		if child == nil {
			child = &MultiStack{Frame: frame}
			node.Children = append(node.Children, child)
		}
		child.N++
		node.sortChildren()
		node = child
	}
}

func (m *MultiStack) findChild(frame StackFrame) *MultiStack {
	for _, c := range m.Children {
		if c.Frame.Equal(frame) {
			return c
		}
	}
	return nil
}

func (m *MultiStack) sortChildren() {
	sort.SliceStable(m.Children, func(i, j int) bool {
		if m.Children[i].N != m.Children[j].N {
			return m.Children[i].N > m.Children[j].N
		}
		return m.Children[i].Frame.Address < m.Children[j].Frame.Address
	})
}

// Print renders the tree, one line per node, children indented under their
// parent with the count of stacks sharing the frame.
func (m *MultiStack) Print(prefix string) []string {
	var text []string
	for _, c := range m.Children {
		c.print2(prefix, &text)
	}
	return text
}

func (m *MultiStack) print2(prefix string, text *[]string) {
	*text = append(*text, fmt.Sprintf("%s[%d] %s", prefix, m.N, m.Frame.String()))
	for _, c := range m.Children {
		c.print2(prefix+"  ", text)
	}
}

func (m *MultiStack) String() string {
	return strings.Join(m.Print(""), "\n")
}

// captureEntryPoints are substrings of function names belonging to the
// trace-capture machinery itself. CleanupStackTrace strips them from the
// root chain so reports start at the caller's code.
var captureEntryPoints = []string{
	"runtime.Callers",
	"runtime.GoroutineProfile",
	"runtime.sigtramp",
	"internal/backend.Backtrace",
	"internal/backend.GoroutineBacktraces",
	"StackTrace.Backtrace",
	"StackTrace.GetCallStack",
	"StackTrace.GetAllCallStacks",
	"StackTrace.RaiseSignal",
	"StackTrace.dispatchSignal",
	"utilities.Abort",
	"utilities.NewAbortError",
	"utilities.buildAbortStack",
	"utilities.signalToAbort",
}

func isCaptureFrame(function string) bool {
	if function == "" {
		return false
	}
	for _, entry := range captureEntryPoints {
		if strings.Contains(function, entry) {
			return true
		}
	}
	return false
}

// CleanupStackTrace strips frames belonging to the capture machinery from
// the root's single chain, stopping at the first frame not on the list.
// Calling it again is a no-op.
func CleanupStackTrace(m *MultiStack) {
	for len(m.Children) == 1 && isCaptureFrame(m.Children[0].Frame.Function) {
		m.Children = m.Children[0].Children
	}
}
