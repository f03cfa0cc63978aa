package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Registry maps storage element names to the backend serving them.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds the backend of a storage element.
// Returns an error if the storage element is already registered.
func (r *Registry) Register(storageElement string, b Backend) error {
	if b == nil {
		return fmt.Errorf("cannot register nil backend")
	}
	if storageElement == "" {
		return fmt.Errorf("cannot register backend with empty storage element")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[storageElement]; exists {
		return fmt.Errorf("storage element %q already registered", storageElement)
	}
	r.backends[storageElement] = b
	return nil
}

// Get returns the backend of a storage element.
func (r *Registry) Get(storageElement string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[storageElement]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStorageElement, storageElement)
	}
	return b, nil
}

// StorageElements returns the registered storage elements in sorted order.
func (r *Registry) StorageElements() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count returns the number of registered storage elements.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// HealthCheck checks every backend and returns the failures keyed by storage
// element.
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, se := range r.StorageElements() {
		b, err := r.Get(se)
		if err != nil {
			continue
		}
		if err := b.HealthCheck(ctx); err != nil {
			failures[se] = err
		}
	}
	return failures
}

// Close closes every backend once, even when a backend serves several
// storage elements.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	closed := make(map[Backend]bool, len(r.backends))
	for se, b := range r.backends {
		if closed[b] {
			continue
		}
		closed[b] = true
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend of %s: %w", se, err))
		}
	}
	r.backends = make(map[string]Backend)
	return errors.Join(errs...)
}
