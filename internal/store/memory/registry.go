// Package memory implements the storage contracts on process-local maps.
// All state lives in an explicit Registry created at wiring time and
// injected into each store, so tests and embedded deployments never
// share ambient globals.
package memory

import (
	"sync"

	"github.com/yungbote/feedstream-backend/internal/store"
)

type Registry struct {
	mu         sync.RWMutex
	timelines  map[string][]store.ScoredEntry
	activities map[string][]byte
}

func NewRegistry() *Registry {
	return &Registry{
		timelines:  make(map[string][]store.ScoredEntry),
		activities: make(map[string][]byte),
	}
}

// Flush drops everything, for tests.
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timelines = make(map[string][]store.ScoredEntry)
	r.activities = make(map[string][]byte)
}
