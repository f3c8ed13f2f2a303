// Package lock provides per-key mutual exclusion for ranking persistence.
//
// Two implementations share the Locker contract: an in-process registry of
// mutexes keyed by job id, and a Redis lease usable across replicas.
// Acquire blocks until the lock is held or ctx is done; callers bound the
// wait with a context deadline.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotAcquired is returned when ctx ends before the lock could be taken.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks keyed by an arbitrary string.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ─── In-memory registry ──────────────────────────────────────────────────────

type entry struct {
	sem  chan struct{}
	refs int
}

// Registry is an in-process Locker. Entries are dropped once no goroutine
// holds or waits on them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) Acquire(ctx context.Context, key string) (func(), error) {
	e := r.ref(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		r.unref(key)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			r.unref(key)
		})
	}, nil
}

func (r *Registry) ref(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		r.entries[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) unref(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
