package ingest

import (
	"errors"
	"sync"
)

// ErrSyncInProgress is returned when a sync for the same (owner, source)
// key is already running. Distinct from data errors: the caller should
// retry later, not inspect a batch result.
var ErrSyncInProgress = errors.New("ingest: sync already in progress for this owner and source")

// Guard serializes ingestion per (owner, source) key. A second request
// for an in-flight key fails fast rather than queueing; different keys
// proceed fully in parallel.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]bool
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]bool)}
}

// TryAcquire marks the key in-flight, or returns ErrSyncInProgress if it
// already is.
func (g *Guard) TryAcquire(owner, source string) error {
	key := owner + "|" + source
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[key] {
		return ErrSyncInProgress
	}
	g.inflight[key] = true
	return nil
}

// Release clears the in-flight mark for the key.
func (g *Guard) Release(owner, source string) {
	key := owner + "|" + source
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
}
