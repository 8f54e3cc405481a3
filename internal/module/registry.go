// Package module holds the step module registry.
package module

import (
	"fmt"
	"sort"
	"sync"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
)

// StaticRegistry is a thread-safe name to factory map.
type StaticRegistry struct {
	mu        sync.RWMutex
	factories map[string]plugin.ModuleFactory
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{factories: make(map[string]plugin.ModuleFactory)}
}

// Register rejects empty names, nil factories and duplicates.
func (r *StaticRegistry) Register(name string, factory plugin.ModuleFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return lgerrors.NewConfigError("module registration error: name cannot be empty", nil)
	}
	if factory == nil {
		return lgerrors.NewConfigError(fmt.Sprintf("module registration error for '%s': factory cannot be nil", name), nil)
	}
	if _, exists := r.factories[name]; exists {
		return lgerrors.NewConfigError(fmt.Sprintf("module registration error: duplicate module name '%s'", name), nil)
	}
	r.factories[name] = factory
	return nil
}

func (r *StaticRegistry) Get(name string) (plugin.ModuleFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, lgerrors.NewModuleNotFoundError(name)
	}
	return factory, nil
}

// List returns the registered names in sorted order.
func (r *StaticRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var globalRegistry = NewStaticRegistry()

var _ plugin.Registry = (*StaticRegistry)(nil)

// Register adds a factory to the process-wide registry. Step modules call
// it from init and a failure is a programming error, so it panics.
func Register(name string, factory plugin.ModuleFactory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(fmt.Errorf("failed to register module '%s' globally: %w", name, err))
	}
}

// DefaultRegistry exposes the process-wide registry.
func DefaultRegistry() plugin.Registry {
	return globalRegistry
}
