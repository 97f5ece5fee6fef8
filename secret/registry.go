package secret

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ProviderFactory builds a Provider from its config block.
type ProviderFactory func(cfg map[string]any) (Provider, error)

// Registry maps provider names to factories so config can select a
// secret backend by name. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register adds a factory under name. Registering the same name twice
// is an error rather than an overwrite.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("secret: provider registration needs a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("secret provider %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create builds a provider by name, passing cfg through to its factory.
func (r *Registry) Create(name string, cfg map[string]any) (Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("secret provider name is required")
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("secret provider %q is not registered", name)
	}
	return factory(cfg)
}

// List returns the registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// DefaultRegistry holds the built-in providers. The env provider
// registers itself here at init.
var DefaultRegistry = NewRegistry()
