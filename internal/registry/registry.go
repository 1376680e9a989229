// Package registry maps connected peers to the name they announced and
// the last rail key they used.
package registry

import (
	"fmt"
	"sync"

	rrerr "railrelay/internal/errors"
)

// Registry holds both per-peer maps behind a single lock.  Peers are
// keyed by their remote address.  The zero value is not usable; call
// New.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string
	keys  map[string]int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		names: make(map[string]string),
		keys:  make(map[string]int),
	}
}

// RecordIdentity stores (or replaces) the display name for id.
func (r *Registry) RecordIdentity(id, name string) {
	r.mu.Lock()
	r.names[id] = name
	r.mu.Unlock()
}

// RecordKey stores (or replaces) the last key used by id.
func (r *Registry) RecordKey(id string, key int) {
	r.mu.Lock()
	r.keys[id] = key
	r.mu.Unlock()
}

// DisplayNameOf returns the name id announced.  It fails with
// ErrUnknownIdentity if id never identified itself.
func (r *Registry) DisplayNameOf(id string) (string, error) {
	r.mu.RLock()
	name, ok := r.names[id]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", rrerr.ErrUnknownIdentity, id)
	}
	return name, nil
}

// LastKeyOf returns the most recent key recorded for id.
func (r *Registry) LastKeyOf(id string) (int, error) {
	r.mu.RLock()
	key, ok := r.keys[id]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: no key for %s", rrerr.ErrUnknownIdentity, id)
	}
	return key, nil
}

// Forget drops every entry for id.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.names, id)
	delete(r.keys, id)
	r.mu.Unlock()
}

// Len returns the number of identified peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Names returns a copy of the id → name map.
func (r *Registry) Names() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.names))
	for id, name := range r.names {
		out[id] = name
	}
	return out
}
