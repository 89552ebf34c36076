// Package keylock provides a per-key mutual exclusion primitive.
//
// Holders of different keys never block each other. Waiters on the same key
// are served in FIFO order. The lock is not re-entrant: acquiring a key that
// the calling goroutine already holds deadlocks until ctx is done.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int // holders + waiters
}

type Mutex struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func New() *Mutex {
	return &Mutex{keys: make(map[string]*entry)}
}

// Acquire blocks until key is free or ctx is done. The returned release
// function must be called exactly once; extra calls are ignored.
func (m *Mutex) Acquire(ctx context.Context, key string) (release func(), err error) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		m.unref(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			m.unref(key, e)
		})
	}, nil
}

// TryAcquire takes key only if nobody holds or waits for it.
func (m *Mutex) TryAcquire(key string) (release func(), ok bool) {
	m.mu.Lock()
	e, found := m.keys[key]
	if !found {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.keys[key] = e
	}
	if !e.sem.TryAcquire(1) {
		m.mu.Unlock()
		return nil, false
	}
	e.refs++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			m.unref(key, e)
		})
	}, true
}

func (m *Mutex) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 && m.keys[key] == e {
		delete(m.keys, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (m *Mutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
