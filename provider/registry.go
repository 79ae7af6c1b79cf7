package provider

import (
	"sync"

	"github.com/aigateway/gateway/classify"
	"github.com/aigateway/gateway/core"
)

// Registry is the process-wide mapping from category to ordered provider
// list plus a per-category rotation cursor (spec §3, §4.2). It is
// read-mostly after startup: registration happens once at process init,
// then GetNext/GetAll are called concurrently from many driver goroutines,
// so reads take the read lock and only GetNext's cursor advance takes a
// write lock.
type Registry struct {
	mu        sync.RWMutex
	providers map[Category][]Provider
	cursor    map[Category]int
	logger    core.Logger
}

// NewRegistry constructs an empty registry. Tests construct private
// instances rather than relying on a package-level singleton; the entry
// point owns the one process-wide instance and passes it down explicitly.
func NewRegistry(logger core.Logger) *Registry {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Registry{
		providers: make(map[Category][]Provider),
		cursor:    make(map[Category]int),
		logger:    logger,
	}
}

// Register appends provider to its category's list, preserving
// registration order. If a provider with the same name is already
// registered in that category, it is replaced in place (an "override");
// otherwise it is appended (an "insert"). Returns the registry so calls
// can be chained.
func (r *Registry) Register(p Provider) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	cat := p.Category()
	list := r.providers[cat]

	for i, existing := range list {
		if existing.Name() == p.Name() {
			list[i] = p
			r.logger.Info("provider override", map[string]interface{}{
				"category": string(cat),
				"provider": p.Name(),
			})
			return r
		}
	}

	r.providers[cat] = append(list, p)
	r.logger.Info("provider insert", map[string]interface{}{
		"category": string(cat),
		"provider": p.Name(),
	})
	return r
}

// GetNext returns the next provider for category in round-robin order,
// advancing the shared cursor modulo the list length. Fails with a
// SERVICE_ERROR-classified error if the category has no registrations.
func (r *Registry) GetNext(category Category) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.providers[category]
	if len(list) == 0 {
		return nil, &classify.Error{
			Message: "no providers registered for category " + string(category),
			Code:    classify.ServiceError,
		}
	}

	idx := r.cursor[category] % len(list)
	r.cursor[category] = (idx + 1) % len(list)
	return list[idx], nil
}

// GetAll returns the ordered provider list for category. Never nil: an
// unregistered category returns an empty, non-nil slice.
func (r *Registry) GetAll(category Category) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.providers[category]
	out := make([]Provider, len(list))
	copy(out, list)
	return out
}

// HasCategory reports whether any provider is registered for category.
func (r *Registry) HasCategory(category Category) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers[category]) > 0
}

// GetCategories returns every category with at least one registered
// provider.
func (r *Registry) GetCategories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Category, 0, len(r.providers))
	for cat, list := range r.providers {
		if len(list) > 0 {
			out = append(out, cat)
		}
	}
	return out
}

// GetStats returns the provider count per category, for the health/
// introspection endpoint (spec §6.1 GET /).
func (r *Registry) GetStats() map[Category]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[Category]int, len(r.providers))
	for cat, list := range r.providers {
		out[cat] = len(list)
	}
	return out
}
