// Package source feeds recorded build notifications into a trace session.
package source

import (
	"sync"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
)

// Recorded is a snapshot provider populated from Snapshot records in a
// stream. The latest record for a project instance wins.
type Recorded struct {
	mu    sync.RWMutex
	state map[int]*snapshot.Snapshot
}

// NewRecorded returns an empty provider.
func NewRecorded() *Recorded {
	return &Recorded{state: make(map[int]*snapshot.Snapshot)}
}

// Set records the state of a project instance. The snapshot must not be
// mutated afterwards; sessions keep references to earlier states.
func (r *Recorded) Set(projectInstanceID int, s *snapshot.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[projectInstanceID] = s
}

// Snapshot implements trace.SnapshotProvider.
func (r *Recorded) Snapshot(projectInstanceID int) (*snapshot.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.state[projectInstanceID]
	return s, ok
}

// Len returns the number of project instances with a recorded state.
func (r *Recorded) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.state)
}
