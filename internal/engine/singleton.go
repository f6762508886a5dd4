package engine

import "sync"

var (
	instanceMu sync.Mutex
	instance   *Engine
)

// Instance returns the process-wide engine, constructing it on first call
// with the given dependencies. Later calls return the existing engine and
// ignore their arguments.
func Instance(deps Dependencies) *Engine {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = New(deps)
	}
	return instance
}

// Reset drops the process-wide engine so the next Instance call constructs a
// fresh one. Exposed for tests.
func Reset() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}

// resetIf drops the process-wide engine only when it is e. Teardown of an
// engine built directly via New must not clear an unrelated stored instance.
func resetIf(e *Engine) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == e {
		instance = nil
	}
}
