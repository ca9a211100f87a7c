package engine

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds the configured OCR engines and provides thread-safe
// access. The pipeline resolves its fast and robust engines by name at
// run start, so engines can be swapped on config reload without
// touching in-flight runs.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	logger  *slog.Logger
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds or replaces an engine by name.
func (r *Registry) Register(name string, eng Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = eng
	if r.logger != nil {
		r.logger.Info("registered OCR engine", "name", name)
	}
}

// Unregister removes an engine by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, name)
	if r.logger != nil {
		r.logger.Info("unregistered OCR engine", "name", name)
	}
}

// Get returns an engine by name.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eng, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("OCR engine not found: %s", name)
	}
	return eng, nil
}

// Has checks whether an engine is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.engines[name]
	return ok
}

// List returns all registered engine names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	return names
}
