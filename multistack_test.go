package stacktrace

import (
	"reflect"
	"testing"
)

func mkFrame(addr uint64, fn string) StackFrame {
	return StackFrame{Address: addr, Function: fn}
}

func assertCountInvariant(t *testing.T, node *MultiStack) {
	t.Helper()
	sum := 0
	for _, c := range node.Children {
		sum += c.N
	}
	if sum > node.N {
		t.Fatalf("children count %d exceeds node count %d at %+v", sum, node.N, node.Frame)
	}
	for _, c := range node.Children {
		assertCountInvariant(t, c)
	}
}

func TestMultiStack_Aggregation(t *testing.T) {
	a := mkFrame(0x10, "a")
	b := mkFrame(0x20, "b")
	c := mkFrame(0x30, "c")
	d := mkFrame(0x40, "d")
	e := mkFrame(0x50, "e")

	ms := NewMultiStack(
		[]StackFrame{a, b, c},
		[]StackFrame{a, b, d},
		[]StackFrame{a, e},
	)

	if ms.N != 3 {
		t.Fatalf("root N = %d, want 3", ms.N)
	}
	if len(ms.Children) != 1 {
		t.Fatalf("expected single child a, got %d", len(ms.Children))
	}
	na := ms.Children[0]
	if na.N != 3 || na.Frame.Function != "a" {
		t.Fatalf("a node wrong: N=%d frame=%+v", na.N, na.Frame)
	}
	if len(na.Children) != 2 {
		t.Fatalf("a should have children b and e, got %d", len(na.Children))
	}
	// deterministic order: descending N, then ascending address
	nb, ne := na.Children[0], na.Children[1]
	if nb.Frame.Function != "b" || nb.N != 2 {
		t.Fatalf("expected b(2) first, got %+v (N=%d)", nb.Frame, nb.N)
	}
	if ne.Frame.Function != "e" || ne.N != 1 {
		t.Fatalf("expected e(1) second, got %+v (N=%d)", ne.Frame, ne.N)
	}
	if len(nb.Children) != 2 {
		t.Fatalf("b should have children c and d, got %d", len(nb.Children))
	}
	if nb.Children[0].Frame.Function != "c" || nb.Children[1].Frame.Function != "d" {
		t.Fatalf("equal counts must order by address: got %s then %s",
			nb.Children[0].Frame.Function, nb.Children[1].Frame.Function)
	}

	assertCountInvariant(t, ms)
}

func TestMultiStack_FrameEquality(t *testing.T) {
	// same address, different line info: must merge
	f1 := StackFrame{Address: 0x10, Function: "f", Filename: "a.go", Line: 1}
	f2 := StackFrame{Address: 0x10, Function: "f", Filename: "a.go", Line: 9}
	ms := NewMultiStack([]StackFrame{f1}, []StackFrame{f2})
	if len(ms.Children) != 1 || ms.Children[0].N != 2 {
		t.Fatalf("frames differing only in line info must merge: %+v", ms.Children)
	}

	// synthesised frames without addresses compare by function
	g1 := StackFrame{Function: "synth"}
	g2 := StackFrame{Function: "synth"}
	g3 := StackFrame{Function: "other"}
	ms2 := NewMultiStack([]StackFrame{g1}, []StackFrame{g2}, []StackFrame{g3})
	if len(ms2.Children) != 2 {
		t.Fatalf("expected 2 distinct synthesised frames, got %d", len(ms2.Children))
	}
}

func TestMultiStack_Empty(t *testing.T) {
	ms := &MultiStack{}
	if !ms.Empty() {
		t.Fatalf("fresh tree must be empty")
	}
	ms.Add([]StackFrame{mkFrame(1, "x")})
	if ms.Empty() {
		t.Fatalf("tree with a stack is not empty")
	}
	ms.Clear()
	if !ms.Empty() || len(ms.Children) != 0 {
		t.Fatalf("Clear must reset the tree")
	}
}

func TestCleanupStackTrace(t *testing.T) {
	capture1 := StackFrame{Address: 0x1, Function: "runtime.Callers"}
	capture2 := StackFrame{Address: 0x2, Function: "github.com/berrill/StackTrace.GetCallStack"}
	user := StackFrame{Address: 0x3, Function: "main.work"}
	main := StackFrame{Address: 0x4, Function: "main.main"}

	ms := NewMultiStack([]StackFrame{capture1, capture2, user, main})
	CleanupStackTrace(ms)

	if len(ms.Children) != 1 {
		t.Fatalf("expected single chain after cleanup")
	}
	if ms.Children[0].Frame.Function != "main.work" {
		t.Fatalf("expected main.work at top, got %q", ms.Children[0].Frame.Function)
	}

	// idempotent
	before := treeShape(ms)
	CleanupStackTrace(ms)
	if !reflect.DeepEqual(before, treeShape(ms)) {
		t.Fatalf("cleanup is not idempotent")
	}
}

func TestCleanupStackTrace_StopsAtBranch(t *testing.T) {
	capture := StackFrame{Address: 0x1, Function: "runtime.Callers"}
	u1 := StackFrame{Address: 0x3, Function: "w1"}
	u2 := StackFrame{Address: 0x4, Function: "w2"}
	ms := NewMultiStack([]StackFrame{capture, u1}, []StackFrame{capture, u2})
	CleanupStackTrace(ms)
	// the shared capture frame is stripped, then the tree branches
	if len(ms.Children) != 2 {
		t.Fatalf("expected branch preserved, got %d children", len(ms.Children))
	}
}

func treeShape(m *MultiStack) []string {
	return m.Print("")
}

func TestMultiStack_Print(t *testing.T) {
	ms := NewMultiStack(
		[]StackFrame{mkFrame(0x10, "a"), mkFrame(0x20, "b")},
		[]StackFrame{mkFrame(0x10, "a")},
	)
	lines := ms.Print("")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0][:3] != "[2]" {
		t.Fatalf("expected count prefix [2], got %q", lines[0])
	}
}
