package capability

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

type (
	// Key identifies a capability by category and name
	Key struct {
		Category string
		Name     string
	}

	// Registry resolves capabilities of one kind by Key
	Registry[T any] struct {
		entries map[Key]T
		mu      sync.RWMutex
	}
)

const keySeparator = "/"

var (
	ErrCapabilityNotFound = errors.New("capability not found")
	ErrCapabilityExists   = errors.New("capability exists")
	ErrNameRequired       = errors.New("capability name required")
)

// NewKey creates a Key
func NewKey(category, name string) Key {
	return Key{Category: category, Name: name}
}

// ParseKey splits a "category/name" string into a Key. A string without a
// separator produces a Key with an empty category
func ParseKey(s string) Key {
	category, name, ok := strings.Cut(s, keySeparator)
	if !ok {
		return Key{Name: s}
	}
	return Key{Category: category, Name: name}
}

// String joins the category and name
func (k Key) String() string {
	if k.Category == "" {
		return k.Name
	}
	return k.Category + keySeparator + k.Name
}

// NewRegistry creates an empty Registry
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		entries: map[Key]T{},
	}
}

// Register adds a capability under the given category and name
func (r *Registry[T]) Register(category, name string, value T) error {
	if name == "" {
		return ErrNameRequired
	}
	key := NewKey(category, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrCapabilityExists, key)
	}
	r.entries[key] = value
	return nil
}

// Replace adds or overwrites a capability
func (r *Registry[T]) Replace(category, name string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[NewKey(category, name)] = value
}

// Get resolves a capability by category and name
func (r *Registry[T]) Get(category, name string) (T, error) {
	return r.Lookup(NewKey(category, name))
}

// Lookup resolves a capability by Key
func (r *Registry[T]) Lookup(key Key) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.entries[key]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrCapabilityNotFound, key)
	}
	return res, nil
}

// Contains returns whether a capability is registered under the Key
func (r *Registry[T]) Contains(key Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Keys returns every registered Key, sorted by category and name
func (r *Registry[T]) Keys() []Key {
	r.mu.RLock()
	keys := slices.Collect(maps.Keys(r.entries))
	r.mu.RUnlock()

	slices.SortFunc(keys, func(l, r Key) int {
		if c := cmp.Compare(l.Category, r.Category); c != 0 {
			return c
		}
		return cmp.Compare(l.Name, r.Name)
	})
	return keys
}

// Categories returns the distinct categories of registered capabilities
func (r *Registry[T]) Categories() []string {
	var res []string
	for _, k := range r.Keys() {
		if !slices.Contains(res, k.Category) {
			res = append(res, k.Category)
		}
	}
	return res
}
