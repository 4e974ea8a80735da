// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package metacache caches the latest assembled definition of catalog
// entities.
//
// The cache only ever holds the latest committed version of an entity; it
// is never filled from a read at an older snapshot. Entries are evicted in
// least recently used order once the estimated size of the cached
// definitions exceeds the configured budget.
package metacache

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/humanizeutil"
	"github.com/cockroachdb/metacat/pkg/util/syncutil"
	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxBytes is the budget used when Config.MaxBytes is unset.
const DefaultMaxBytes = 64 << 20

// Config configures a Cache.
type Config struct {
	// MaxBytes bounds the estimated size of the cached definitions.
	MaxBytes humanizeutil.Bytes `yaml:"max_bytes"`
}

// Cache maps catalog keys to the latest known definition of the entity.
// It is safe for concurrent use.
type Cache struct {
	maxBytes int64
	metrics  Metrics
	flights  singleflight.Group

	mu struct {
		syncutil.Mutex
		lru *lru.Cache
		// size is the sum of the sizes of the cached entries.
		size   int64
		closed bool
		// removing is set while an entry leaves the cache for a reason other
		// than eviction.
		removing bool
	}
}

type entry struct {
	def  *catpb.TableDefinition
	size int64
}

// New returns an empty cache.
func New(cfg Config) *Cache {
	c := &Cache{
		maxBytes: int64(cfg.MaxBytes),
		metrics:  makeMetrics(),
	}
	if c.maxBytes <= 0 {
		c.maxBytes = DefaultMaxBytes
	}
	c.mu.lru = lru.New(0)
	c.mu.lru.OnEvicted = c.onRemoved
	return c
}

// onRemoved is called by the lru with c.mu held.
func (c *Cache) onRemoved(_ lru.Key, value interface{}) {
	e := value.(*entry)
	c.mu.size -= e.size
	if !c.mu.removing {
		c.metrics.Evictions.Inc()
	}
}

func (c *Cache) updateGaugesLocked() {
	c.metrics.Entries.Set(float64(c.mu.lru.Len()))
	c.metrics.SizeBytes.Set(float64(c.mu.size))
}

// Get returns the cached definition of the entity at key.
func (c *Cache) Get(key catalogkeys.Key) (*catpb.TableDefinition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.closed {
		return nil, false
	}
	v, ok := c.mu.lru.Get(string(key))
	if !ok {
		c.metrics.Misses.Inc()
		return nil, false
	}
	c.metrics.Hits.Inc()
	return v.(*entry).def, true
}

// Put caches def, which must be the latest version of the entity at key,
// replacing any previous entry. Definitions larger than the whole budget
// are not cached.
func (c *Cache) Put(key catalogkeys.Key, def *catpb.TableDefinition) {
	size := def.EstimatedSize() + int64(len(key))
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.closed {
		return
	}
	c.removeLocked(key)
	if size > c.maxBytes {
		c.updateGaugesLocked()
		return
	}
	c.mu.lru.Add(string(key), &entry{def: def, size: size})
	c.mu.size += size
	for c.mu.size > c.maxBytes {
		c.mu.lru.RemoveOldest()
	}
	c.updateGaugesLocked()
}

func (c *Cache) removeLocked(key catalogkeys.Key) {
	c.mu.removing = true
	c.mu.lru.Remove(string(key))
	c.mu.removing = false
}

// Invalidate removes the entry of key, if any.
func (c *Cache) Invalidate(key catalogkeys.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.closed {
		return
	}
	c.removeLocked(key)
	c.metrics.Invalidations.Inc()
	c.updateGaugesLocked()
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.closed {
		return
	}
	c.clearLocked()
	c.metrics.Invalidations.Inc()
}

func (c *Cache) clearLocked() {
	c.mu.removing = true
	c.mu.lru.Clear()
	c.mu.removing = false
	c.mu.size = 0
	c.updateGaugesLocked()
}

// errFillAbandoned marks the error of a fill whose caller's context was
// done before fn returned.
var errFillAbandoned = errors.New("fill abandoned by its caller")

// Fill runs fn, unless a call of Fill for the same key and read timestamp
// is already running, in which case it waits for and returns that call's
// result. fn is expected to rebuild and Put the definition under the
// entity's row lock. A waiter whose own context is live runs the fill
// again when the call it joined was abandoned by its caller.
func (c *Cache) Fill(
	ctx context.Context,
	key catalogkeys.Key,
	asOf hlc.Timestamp,
	fn func(ctx context.Context) (*catpb.TableDefinition, error),
) (*catpb.TableDefinition, error) {
	for {
		v, err, shared := c.flights.Do(string(key)+"@"+asOf.String(), func() (interface{}, error) {
			def, err := fn(ctx)
			if err != nil && ctx.Err() != nil {
				return nil, errors.Mark(err, errFillAbandoned)
			}
			return def, err
		})
		if shared {
			c.metrics.SharedFills.Inc()
		}
		if err != nil {
			if errors.Is(err, errFillAbandoned) && ctx.Err() == nil {
				continue
			}
			return nil, err
		}
		return v.(*catpb.TableDefinition), nil
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.lru.Len()
}

// Size returns the estimated size of the cached entries.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.size
}

// Metrics returns the cache's metrics.
func (c *Cache) Metrics() Metrics { return c.metrics }

// Close empties the cache. Later calls to Put are ignored and calls to Get
// miss.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.closed {
		return
	}
	c.clearLocked()
	c.mu.closed = true
}
