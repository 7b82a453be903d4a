// Package registry resolves named guard and hook strategies to their implementations.
//
// Serialized workflow definitions reference callbacks by name only; the registry
// keeps the definitions pure data while the host decides what each name does.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/flowstate/pkg/domain"
)

// Registry manages the available guard and hook strategies.
type Registry struct {
	mu     sync.RWMutex
	guards map[string]domain.GuardFunc
	hooks  map[string]domain.HookFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards: make(map[string]domain.GuardFunc),
		hooks:  make(map[string]domain.HookFunc),
	}
}

// RegisterGuard adds a guard strategy.
// If a guard with the same name exists, it is overwritten.
func (r *Registry) RegisterGuard(name string, fn domain.GuardFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[name] = fn
}

// RegisterHook adds a hook strategy.
// If a hook with the same name exists, it is overwritten.
func (r *Registry) RegisterHook(name string, fn domain.HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = fn
}

// Guard resolves a guard by name.
// Returns an error if the guard is not found.
func (r *Registry) Guard(name string) (domain.Guard, error) {
	r.mu.RLock()
	fn, ok := r.guards[name]
	r.mu.RUnlock()

	if !ok {
		return domain.Guard{}, fmt.Errorf("guard not found: %s", name)
	}
	return domain.Guard{Name: name, Fn: fn}, nil
}

// Hook resolves a hook by name.
// Returns an error if the hook is not found.
func (r *Registry) Hook(name string) (domain.Hook, error) {
	r.mu.RLock()
	fn, ok := r.hooks[name]
	r.mu.RUnlock()

	if !ok {
		return domain.Hook{}, fmt.Errorf("hook not found: %s", name)
	}
	return domain.Hook{Name: name, Fn: fn}, nil
}

// GuardNames lists the registered guards, sorted.
func (r *Registry) GuardNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.guards)
}

// HookNames lists the registered hooks, sorted.
func (r *Registry) HookNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.hooks)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
