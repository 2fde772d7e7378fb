// Package keylock serializes work per key (a VM name) while letting
// different keys proceed concurrently.
package keylock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker hands out one exclusive slot per key.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Acquire blocks until key is free or ctx is done. The returned release
// func must be called exactly once.
func (l *Locker) Acquire(ctx context.Context, key string) (release func(), err error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.drop(key, e)
		return nil, fmt.Errorf("wait for lock on %q: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.drop(key, e)
		})
	}, nil
}

// TryAcquire takes key without waiting. ok is false when key is held.
func (l *Locker) TryAcquire(key string) (release func(), ok bool) {
	l.mu.Lock()
	e, exists := l.locks[key]
	if !exists {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.locks[key] = e
	}
	if !e.sem.TryAcquire(1) {
		if !exists {
			delete(l.locks, key)
		}
		l.mu.Unlock()
		return nil, false
	}
	e.refs++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.drop(key, e)
		})
	}, true
}

func (l *Locker) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 && l.locks[key] == e {
		delete(l.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
