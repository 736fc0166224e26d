// Package keylock serializes work per aggregate key.
//
// The document store has no multi-document transactions across
// collections, so read-modify-write sequences such as "count the page's
// blocks, then append one" or "create an instance, then bump the
// component's usage_count" are run under a lock named after the aggregate
// ("page:<id>", "component:<id>").  Each key owns a weighted semaphore of
// size one; acquisition honours context cancellation and an optional
// timeout.  Entries are reference counted and dropped when idle.
package keylock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Locker hands out per-key exclusive locks.  The zero value is not
// usable; call New.
type Locker struct {
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New returns a Locker.  timeout > 0 bounds each acquisition.
func New(timeout time.Duration) *Locker {
	return &Locker{timeout: timeout, entries: make(map[string]*entry)}
}

// Lock blocks until key is free, ctx is done, or the timeout elapses.
// The returned func releases the lock and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquireEntry(key)

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.releaseEntry(key, e)
		return nil, fmt.Errorf("keylock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.releaseEntry(key, e)
		})
	}, nil
}

// Do runs fn while holding key.
func (l *Locker) Do(ctx context.Context, key string, fn func() error) error {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (l *Locker) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) releaseEntry(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live keys.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
