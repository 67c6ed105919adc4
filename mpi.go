package stacktrace

import "sync"

// MPIBridge is the hook point for MPI-aware builds. The library never links
// MPI itself; an application that does installs a bridge and the terminate
// path and error-handler installation use it.
type MPIBridge interface {
	// Initialized reports whether MPI_Init has completed.
	Initialized() bool
	// Finalized reports whether MPI_Finalize has completed.
	Finalized() bool
	// Abort requests a global abort of the world communicator.
	Abort(code int) error
	// SetErrorHandlers routes communicator errors into the given handler.
	SetErrorHandlers(handler func(*AbortError))
	// ClearErrorHandlers restores the previous communicator error handlers.
	ClearErrorHandlers()
}

var (
	mpiMu     sync.RWMutex
	mpiBridge MPIBridge
)

// SetMPIBridge installs the MPI bridge; nil removes it.
func SetMPIBridge(bridge MPIBridge) {
	mpiMu.Lock()
	mpiBridge = bridge
	mpiMu.Unlock()
}

// GetMPIBridge returns the installed bridge, or nil.
func GetMPIBridge() MPIBridge {
	mpiMu.RLock()
	defer mpiMu.RUnlock()
	return mpiBridge
}

// MPIActive reports whether MPI is initialized but not yet finalized.
func MPIActive() bool {
	bridge := GetMPIBridge()
	return bridge != nil && bridge.Initialized() && !bridge.Finalized()
}
