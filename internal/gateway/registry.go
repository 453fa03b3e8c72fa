package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
)

// ServiceRegistry is the in-memory catalog of downstream services and
// the tools they expose. It is rebuilt by the poller and consulted by
// the router; state does not survive a restart.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]*domain.ServiceEntry
}

func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]*domain.ServiceEntry)}
}

// Upsert replaces the entry for a service, stamping LastSeen.
func (r *ServiceRegistry) Upsert(entry *domain.ServiceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.LastSeen = time.Now()
	r.services[entry.Name] = entry
}

// Remove drops a service from the registry. Removing an unknown
// service is a no-op.
func (r *ServiceRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// Get returns the entry for a service, or nil.
func (r *ServiceRegistry) Get(name string) *domain.ServiceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[name]
}

// All returns the registered services sorted by name.
func (r *ServiceRegistry) All() []*domain.ServiceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ServiceEntry, 0, len(r.services))
	for _, entry := range r.services {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindTool returns the first healthy service, in name order, that
// exposes the named tool. The second return is false when no healthy
// service has it.
func (r *ServiceRegistry) FindTool(tool string) (*domain.ServiceEntry, bool) {
	for _, entry := range r.All() {
		if !entry.Healthy {
			continue
		}
		if _, ok := entry.Tools[tool]; ok {
			return entry, true
		}
	}
	return nil, false
}

// Count returns the number of registered services.
func (r *ServiceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}
