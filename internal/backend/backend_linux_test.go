//go:build linux

package backend

import (
	"os"
	"runtime"
	"testing"
)

func TestThreads_IncludesCallingThread(t *testing.T) {
	handles, err := Threads()
	if err != nil {
		t.Fatalf("Threads returned error: %v", err)
	}
	self := CurrentThread()
	found := false
	for _, h := range handles {
		if h == self {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("calling thread %d not in %v", self, handles)
	}
}

func TestThreadBacktrace(t *testing.T) {
	t.Run("self_capture_works", func(t *testing.T) {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		pcs, err := ThreadBacktrace(CurrentThread(), 32)
		if err != nil {
			t.Fatalf("self ThreadBacktrace returned error: %v", err)
		}
		if len(pcs) == 0 {
			t.Fatalf("expected frames for the calling thread")
		}
	})

	t.Run("foreign_thread_is_unsupported", func(t *testing.T) {
		_, err := ThreadBacktrace(^ThreadHandle(0), 32)
		if err != ErrUnsupported {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
	})
}

func TestModuleRegion_SelfExecutable(t *testing.T) {
	pcs, err := Backtrace(0, 4)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	info, err := ModuleRegion(uint64(pcs[0]))
	if err != nil {
		t.Skipf("no module for own PC (statically mapped oddly?): %v", err)
	}
	if info.Path == "" {
		t.Fatalf("expected a module path")
	}
	if _, statErr := os.Stat(info.Path); statErr != nil {
		t.Fatalf("module path %q does not exist: %v", info.Path, statErr)
	}
}
