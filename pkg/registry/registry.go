// Package registry implements the process-wide catalog of named storage
// backends: a default store, any number of additional concrete stores, and
// an alias table mapping friendly names onto them. Every other package that
// needs a driver.FileStorage by name goes through a Registry rather than
// holding a reference directly, so that an operator can repoint "avatars"
// at a new backend without touching application code.
package registry

import (
	"fmt"
	"sync"

	"github.com/depotgo/depot/pkg/driver"
)

// Registry is a thread-safe catalog of named driver.FileStorage instances
// plus an alias table resolving onto them. Configuration writes (Configure,
// SetDefault, Alias, Clear) are serialized; lookups (Get, Resolve) run
// concurrently with each other and are cheap enough to call per request.
type Registry struct {
	mu      sync.RWMutex
	stores  map[string]driver.FileStorage
	aliases map[string]string
	def     string
}

// New creates an empty registry with no default store.
func New() *Registry {
	return &Registry{
		stores:  make(map[string]driver.FileStorage),
		aliases: make(map[string]string),
	}
}

// Configure registers a concrete store under name. The first store ever
// configured on a Registry becomes its default. Re-registering an existing
// name, or a name already claimed by an alias, is a configuration_error.
func (r *Registry) Configure(name string, store driver.FileStorage) error {
	if name == "" {
		return driver.NewError("configure", "", "", fmt.Errorf("%w: store name is required", driver.ErrConfiguration))
	}
	if store == nil {
		return driver.NewError("configure", name, "", fmt.Errorf("%w: store is required", driver.ErrConfiguration))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return driver.NewError("configure", name, "", fmt.Errorf("%w: store %q already registered", driver.ErrConfiguration, name))
	}
	if _, exists := r.aliases[name]; exists {
		return driver.NewError("configure", name, "", fmt.Errorf("%w: name %q already claimed by an alias", driver.ErrConfiguration, name))
	}

	r.stores[name] = store
	if r.def == "" {
		r.def = name
	}
	return nil
}

// SetDefault changes the default store. The target must already be a
// registered concrete store (an alias is not accepted, to keep the default
// pointer stable even if the alias is later repointed).
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; !exists {
		return driver.NewError("set_default", name, "", fmt.Errorf("%w: store %q not found", driver.ErrConfiguration, name))
	}
	r.def = name
	return nil
}

// GetDefault returns the name of the default store. Errors if no store has
// been configured yet.
func (r *Registry) GetDefault() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.def == "" {
		return "", driver.NewError("get_default", "", "", fmt.Errorf("%w: no store configured", driver.ErrConfiguration))
	}
	return r.def, nil
}

// Get resolves name to a driver.FileStorage, following any alias chain.
// An empty name resolves to the default store.
func (r *Registry) Get(name string) (driver.FileStorage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		if r.def == "" {
			return nil, driver.NewError("get", "", "", fmt.Errorf("%w: no store configured", driver.ErrConfiguration))
		}
		name = r.def
	}

	concrete, ok := r.resolveLocked(name)
	if !ok {
		return nil, driver.NewError("get", name, "", fmt.Errorf("%w: store %q not found", driver.ErrConfiguration, name))
	}
	return r.stores[concrete], nil
}

// Alias registers alias as another name for the store (or alias chain)
// named target. target must already resolve to a concrete store; alias
// must not shadow an existing concrete store name, since that would orphan
// any files already addressed under that name.
func (r *Registry) Alias(alias, target string) error {
	if alias == "" {
		return driver.NewError("alias", "", "", fmt.Errorf("%w: alias name is required", driver.ErrConfiguration))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[alias]; exists {
		return driver.NewError("alias", alias, "", fmt.Errorf("%w: %q is already a concrete store", driver.ErrConfiguration, alias))
	}
	if _, ok := r.resolveLocked(target); !ok {
		return driver.NewError("alias", alias, "", fmt.Errorf("%w: target %q does not resolve to a store", driver.ErrConfiguration, target))
	}
	for n := target; ; {
		if n == alias {
			return driver.NewError("alias", alias, "", fmt.Errorf("%w: alias %q would form a cycle", driver.ErrConfiguration, alias))
		}
		next, ok := r.aliases[n]
		if !ok {
			break
		}
		n = next
	}

	r.aliases[alias] = target
	return nil
}

// Resolve walks the alias chain starting at name and returns the concrete
// store name it terminates at. The second return value is false if name
// does not resolve to anything registered.
func (r *Registry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

// resolveLocked must be called with mu held (read or write).
func (r *Registry) resolveLocked(name string) (string, bool) {
	seen := make(map[string]bool)
	for {
		if _, ok := r.stores[name]; ok {
			return name, true
		}
		if seen[name] {
			return "", false // alias cycle, should never happen past Alias's own checks
		}
		seen[name] = true

		next, ok := r.aliases[name]
		if !ok {
			return "", false
		}
		name = next
	}
}

// Clear resets the registry to empty. Intended for test teardown, not
// production use.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]driver.FileStorage)
	r.aliases = make(map[string]string)
	r.def = ""
}

// Names returns the names of every registered concrete store. The returned
// slice is a copy and safe to modify.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	return names
}

// Aliases returns a copy of the alias table (alias name -> target name).
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// Count returns the number of registered concrete stores.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}
