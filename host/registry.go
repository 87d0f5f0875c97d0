package host

import (
	"sync"

	"github.com/wippyai/wasm-executor/errors"
)

// Handle is an opaque reference to a callable in a Registry.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Registry owns native callables and hands out handles to them.
// Store entities refer to callables only by Handle, never by pointer.
// Entries live until Reset; handles are never reused before then.
type Registry struct {
	entries []Callable
	limit   int
	mu      sync.RWMutex
}

// NewRegistry creates a registry. A limit of 0 means unbounded.
func NewRegistry(limit int) *Registry {
	return &Registry{
		entries: make([]Callable, 0, 16),
		limit:   limit,
	}
}

// Insert takes ownership of c and returns its handle.
func (r *Registry) Insert(c Callable) (Handle, error) {
	if c == nil {
		return 0, errors.InvalidInput(errors.PhaseHost, "nil callable")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limit > 0 && len(r.entries) >= r.limit {
		return 0, errors.Capacity(errors.PhaseHost, "host function registry", r.limit)
	}

	r.entries = append(r.entries, c)
	return Handle(len(r.entries)), nil
}

// Get resolves a handle to its callable.
func (r *Registry) Get(handle Handle) (Callable, bool) {
	if handle == 0 {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := int(handle - 1)
	if idx >= len(r.entries) {
		return nil, false
	}
	return r.entries[idx], true
}

// Len returns the number of registered callables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reset drops every callable. Handles issued before Reset become invalid.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.entries)
	r.entries = r.entries[:0]
}
