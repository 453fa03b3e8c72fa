package registry

import (
	"sync"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
)

// ModelRegistry is the in-memory registry of discovered models.
// Only the discovery poll cycle writes to it; readers get copies.
type ModelRegistry struct {
	mu       sync.RWMutex
	models   map[string]*domain.ModelRecord // ID -> record
	lastPoll time.Time
}

// NewModelRegistry creates an empty model registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*domain.ModelRecord),
	}
}

// Replace swaps the registry contents for exactly the given records.
// Stale entries are never merged back in.
func (r *ModelRegistry) Replace(records []*domain.ModelRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]*domain.ModelRecord, len(records))
	for _, rec := range records {
		r.models[rec.ID] = rec
	}
	r.lastPoll = time.Now()
}

// Get retrieves a model record by ID.
func (r *ModelRegistry) Get(id string) (*domain.ModelRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.models[id]
	return rec, ok
}

// All returns every model record.
func (r *ModelRegistry) All() []*domain.ModelRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*domain.ModelRecord, 0, len(r.models))
	for _, rec := range r.models {
		records = append(records, rec)
	}
	return records
}

// IDs returns the set of known model IDs.
func (r *ModelRegistry) IDs() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make(map[string]bool, len(r.models))
	for id := range r.models {
		ids[id] = true
	}
	return ids
}

// Count returns the number of registered models.
func (r *ModelRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.models)
}

// LastPoll returns the timestamp of the last successful poll cycle.
func (r *ModelRegistry) LastPoll() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastPoll
}
