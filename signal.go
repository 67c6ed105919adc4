package stacktrace

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/berrill/StackTrace/internal/backend"
)

// SignalHandler receives the number of a caught signal. Handlers run on a
// dedicated dispatch goroutine, not in signal context: delivery goes through
// a one-slot buffered channel, so the signal-context work is bounded to the
// runtime's own notification and a further signal arriving while the slot is
// full is dropped rather than blocking.
type SignalHandler func(sig int)

type signalWatch struct {
	ch   chan os.Signal
	stop chan struct{}
}

var (
	sigMu   sync.Mutex
	watches = map[int]*signalWatch{}
)

// SetSignals installs handler for each signal in the list, replacing any
// watch installed earlier. ClearSignal restores the disposition that was in
// effect before the first SetSignals for that signal.
func SetSignals(signals []int, handler SignalHandler) {
	sigMu.Lock()
	defer sigMu.Unlock()
	for _, sig := range signals {
		if old, ok := watches[sig]; ok {
			signal.Stop(old.ch)
			close(old.stop)
		}
		w := &signalWatch{
			ch:   make(chan os.Signal, 1),
			stop: make(chan struct{}),
		}
		signal.Notify(w.ch, syscall.Signal(sig))
		watches[sig] = w
		go dispatchSignal(sig, w, handler)
	}
}

func dispatchSignal(sig int, w *signalWatch, handler SignalHandler) {
	for {
		select {
		case <-w.stop:
			return
		case _, ok := <-w.ch:
			if !ok {
				return
			}
			if handler != nil {
				handler(sig)
			}
		}
	}
}

// ClearSignal restores the previous disposition of sig.
func ClearSignal(sig int) {
	sigMu.Lock()
	defer sigMu.Unlock()
	clearSignalLocked(sig)
}

// ClearSignals restores every signal installed through SetSignals. Safe to
// call from a handler context during termination.
func ClearSignals() {
	sigMu.Lock()
	defer sigMu.Unlock()
	for sig := range watches {
		clearSignalLocked(sig)
	}
}

func clearSignalLocked(sig int) {
	w, ok := watches[sig]
	if !ok {
		return
	}
	signal.Stop(w.ch)
	signal.Reset(syscall.Signal(sig))
	close(w.stop)
	delete(watches, sig)
}

// RaiseSignal delivers sig to the current process.
func RaiseSignal(sig int) error {
	if err := backend.RaiseSignal(sig); err != nil {
		slog.Warn("Failed to raise signal", "signal", sig, "error", err)
		return err
	}
	return nil
}
