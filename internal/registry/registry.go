// Package registry tracks in-flight operations by caller supplied cancel
// token so a separate call can abort them.
package registry

import "sync"

// Handle is an in-flight operation that can be aborted.
type Handle interface {
	Cancel()
}

// Registry is safe for concurrent use.
type Registry struct {
	mu  sync.Mutex
	ops map[string]Handle
}

func New() *Registry { return &Registry{ops: make(map[string]Handle)} }

// Add stores h under token, replacing any previous handle.
func (r *Registry) Add(token string, h Handle) {
	r.mu.Lock()
	r.ops[token] = h
	r.mu.Unlock()
}

// Remove deletes token. It is a no-op when token is absent.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.ops, token)
	r.mu.Unlock()
}

// Cancel aborts the operation registered under token and reports whether one
// was found. The entry stays in place until the operation completes.
func (r *Registry) Cancel(token string) bool {
	r.mu.Lock()
	h, ok := r.ops[token]
	r.mu.Unlock()
	if !ok {
		return false
	}
	h.Cancel()
	return true
}

// CancelAll aborts every registered operation and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	hs := make([]Handle, 0, len(r.ops))
	for _, h := range r.ops {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		h.Cancel()
	}
	return len(hs)
}

func (r *Registry) Has(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ops[token]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}
