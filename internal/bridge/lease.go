package bridge

import (
	"sync"

	registry "github.com/hanpama/gqlbridge/internal/registry"
)

// lease ties one operation's registry entry to its lifetime. bind registers
// the handle unless the operation already completed; release removes it again.
// Both are idempotent. A nil lease does nothing, so operations without a
// cancel token never touch the registry.
type lease struct {
	ops   Registry
	token string

	mu       sync.Mutex
	bound    bool
	released bool
}

func newLease(ops Registry, token string, ok bool) *lease {
	if !ok {
		return nil
	}
	return &lease{ops: ops, token: token}
}

func (l *lease) bind(h registry.Handle) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bound || l.released {
		return
	}
	l.ops.Add(l.token, h)
	l.bound = true
}

func (l *lease) release() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	if l.bound {
		l.ops.Remove(l.token)
	}
}
