// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/util/syncutil"
	"golang.org/x/sync/semaphore"
)

// lockTable hands out exclusive locks on row keys. Entries are reference
// counted and removed once no holder or waiter remains.
type lockTable struct {
	timeout time.Duration

	mu struct {
		syncutil.Mutex
		locks map[string]*rowLock
	}
}

type rowLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newLockTable(timeout time.Duration) *lockTable {
	lt := &lockTable{timeout: timeout}
	lt.mu.locks = make(map[string]*rowLock)
	return lt
}

func (lt *lockTable) ref(key string) *rowLock {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l, ok := lt.mu.locks[key]
	if !ok {
		l = &rowLock{sem: semaphore.NewWeighted(1)}
		lt.mu.locks[key] = l
	}
	l.refs++
	return l
}

func (lt *lockTable) unref(key string, l *rowLock) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(lt.mu.locks, key)
	}
}

// acquire blocks until the lock on key is held, the timeout expires or ctx
// is canceled.
func (lt *lockTable) acquire(ctx context.Context, key []byte) (*LockGuard, error) {
	k := string(key)
	l := lt.ref(k)
	waitCtx := ctx
	if lt.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, lt.timeout)
		defer cancel()
	}
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		lt.unref(k, l)
		return nil, errors.Mark(
			errors.Wrapf(err, "acquiring lock on %q", key), ErrLockTimeout)
	}
	return &LockGuard{lt: lt, key: k, l: l}, nil
}

// numLocks returns the number of keys with a holder or waiter.
func (lt *lockTable) numLocks() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.mu.locks)
}

// waiters returns the number of callers waiting for the lock on key.
func (lt *lockTable) waiters(key string) int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l, ok := lt.mu.locks[key]
	if !ok {
		return 0
	}
	// One reference belongs to the holder.
	return l.refs - 1
}

// LockGuard is a held row lock.
type LockGuard struct {
	lt   *lockTable
	key  string
	l    *rowLock
	once sync.Once
}

// Key returns the locked row key.
func (g *LockGuard) Key() []byte { return []byte(g.key) }

// Release releases the lock. It is safe to call more than once.
func (g *LockGuard) Release() {
	g.once.Do(func() {
		g.l.sem.Release(1)
		g.lt.unref(g.key, g.l)
	})
}
