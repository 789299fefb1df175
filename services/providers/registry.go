package providers

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the configured provider adapters keyed by name
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	logger   *zap.Logger
}

// NewRegistry creates an empty adapter registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds an adapter under its own name, replacing any previous one
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(adapter.Name())
	r.adapters[name] = adapter

	r.logger.Info("Provider adapter registered",
		zap.String("provider", name),
		zap.Strings("models", adapter.Models()))
}

// Get returns the adapter for a provider name, case-insensitively
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[strings.ToLower(name)]
	return adapter, ok
}

// Supports reports whether a provider serves the given model
func (r *Registry) Supports(provider, model string) bool {
	adapter, ok := r.Get(provider)
	if !ok {
		return false
	}
	for _, m := range adapter.Models() {
		if strings.EqualFold(m, model) {
			return true
		}
	}
	return false
}

// Names returns the registered provider names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
