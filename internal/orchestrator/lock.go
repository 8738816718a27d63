package orchestrator

import "sync"

// RunLocks grants at most one active run per target id.
type RunLocks struct {
	mu   sync.Mutex
	held map[string]string // target id -> run id
}

// NewRunLocks returns an empty lock table.
func NewRunLocks() *RunLocks {
	return &RunLocks{held: make(map[string]string)}
}

// TryAcquire claims targetID for runID. It returns false without blocking
// when another run holds the target.
func (l *RunLocks) TryAcquire(targetID, runID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[targetID]; busy {
		return false
	}
	l.held[targetID] = runID
	return true
}

// Release frees targetID if runID holds it.
func (l *RunLocks) Release(targetID, runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[targetID] == runID {
		delete(l.held, targetID)
	}
}

// Holder returns the run holding targetID.
func (l *RunLocks) Holder(targetID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.held[targetID]
	return id, ok
}
