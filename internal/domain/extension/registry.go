package extension

import (
	"sync"
	"time"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/types"
)

// Registry is the in-memory record of installed extensions. Durability
// belongs to the installer; the registry only mirrors what is on disk
// plus runtime state learned from bus events.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*types.Extension // Protected by mu
	order   []string                    // Insertion order, protected by mu
	log     *logging.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*types.Extension),
		log:     log.Component("registry"),
	}
}

// Register adds an extension or replaces the entry with the same id.
// A replaced entry keeps its position in the listing order.
func (r *Registry) Register(ext *types.Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ext.Manifest.ID
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = ext
}

// Unregister removes an extension by id
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}

	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get retrieves an extension by id
func (r *Registry) Get(id string) (*types.Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext, ok := r.entries[id]
	if !ok {
		return nil, false
	}

	// Return a copy to prevent external modifications
	extCopy := *ext
	return &extCopy, true
}

// All returns every extension in insertion order
func (r *Registry) All() []*types.Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]*types.Extension, 0, len(r.order))
	for _, id := range r.order {
		extCopy := *r.entries[id]
		exts = append(exts, &extCopy)
	}
	return exts
}

// SetState updates the lifecycle state of an extension. Entering the
// active state records the activation timestamp; leaving the error
// state clears the previous diagnostic.
func (r *Registry) SetState(id string, state types.ExtensionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, ok := r.entries[id]
	if !ok {
		return false
	}

	ext.State = state
	switch state {
	case types.StateActive:
		now := time.Now()
		ext.ActivatedAt = &now
		ext.LastError = nil
	case types.StateLoaded, types.StateInstalled:
		ext.LastError = nil
	}
	return true
}

// SetError moves an extension into the error state with a diagnostic
func (r *Registry) SetError(id string, errMsg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, ok := r.entries[id]
	if !ok {
		return false
	}

	ext.State = types.StateError
	ext.LastError = &errMsg
	return true
}

// SetPinned records the pinned version for an extension. A nil version
// clears the pin. Pins are recorded, not enforced.
func (r *Registry) SetPinned(id string, version *string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, ok := r.entries[id]
	if !ok {
		return false
	}

	ext.PinnedVersion = version
	return true
}

// Count returns the number of registered extensions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// CountByState returns the number of extensions in the given state
func (r *Registry) CountByState(state types.ExtensionState) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, ext := range r.entries {
		if ext.State == state {
			count++
		}
	}
	return count
}
