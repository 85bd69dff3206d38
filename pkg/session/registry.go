package session

import (
	"fmt"
	"sync"

	"github.com/fika-labs/agentrelay/internal/observability"
)

// Registry maps session identifiers to live coordinators. The mapping
// is valid only for the current process lifetime: a restart loses all
// coordinators even though their durable rows survive, and SSE
// delivery for those sessions cannot resume without recreating one.
type Registry struct {
	mu           sync.RWMutex
	coordinators map[string]*Coordinator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	observability.EnsureRegistered()

	return &Registry{
		coordinators: make(map[string]*Coordinator),
	}
}

// Register adds a coordinator under its session identifier.
// Registering an already-present identifier fails; there is no
// silent overwrite.
func (r *Registry) Register(id string, c *Coordinator) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if c == nil {
		return fmt.Errorf("coordinator is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.coordinators[id]; exists {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateSession)
	}

	r.coordinators[id] = c
	observability.SetActiveSessions(len(r.coordinators))
	return nil
}

// Lookup returns the coordinator for id, or ErrNotFound
func (r *Registry) Lookup(id string) (*Coordinator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.coordinators[id]
	if !exists {
		return nil, fmt.Errorf("lookup %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// Remove drops the coordinator for id, if present
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.coordinators, id)
	observability.SetActiveSessions(len(r.coordinators))
}

// Len returns the number of live coordinators
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.coordinators)
}
