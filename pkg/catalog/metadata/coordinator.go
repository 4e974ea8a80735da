// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package metadata implements the catalog operations. Reads go through the
// metadata cache; mutations take the row locks of every entity they touch,
// check their preconditions against the latest committed definitions and
// commit all of their rows atomically.
//
// Preconditions which do not hold are reported as a catpb.MutationResult
// with a non-success code. Only infrastructure failures (lock timeouts,
// store errors, corrupt rows) are returned as errors, and those leave both
// the store and the cache untouched.
package metadata

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/metacat/pkg/build"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkeys"
	"github.com/cockroachdb/metacat/pkg/catalog/catalogkv"
	"github.com/cockroachdb/metacat/pkg/catalog/catpb"
	"github.com/cockroachdb/metacat/pkg/catalog/metacache"
	"github.com/cockroachdb/metacat/pkg/storage"
	"github.com/cockroachdb/metacat/pkg/util/encoding"
	"github.com/cockroachdb/metacat/pkg/util/hlc"
	"github.com/cockroachdb/metacat/pkg/util/humanizeutil"
	"github.com/cockroachdb/metacat/pkg/util/iterutil"
	"github.com/cockroachdb/metacat/pkg/util/log"
)

// DefaultSlowOperationThreshold is used when Options.SlowOperationThreshold
// is unset.
const DefaultSlowOperationThreshold = time.Second

// Options configures a Coordinator.
type Options struct {
	Store *storage.Store
	// Cache defaults to a cache with the default budget.
	Cache *metacache.Cache
	// StartKey and EndKey bound the region of the key space hosted by the
	// coordinator. A nil EndKey is unbounded.
	StartKey, EndKey []byte
	// SlowOperationThreshold is the latency above which operations are
	// logged. Negative disables the log.
	SlowOperationThreshold time.Duration
}

// Coordinator serves the catalog operations of one region.
type Coordinator struct {
	store            *storage.Store
	cache            *metacache.Cache
	startKey, endKey []byte
	slowThreshold    time.Duration
	slowLog          *log.EveryN
	metrics          Metrics
}

// NewCoordinator returns a Coordinator over opts.Store.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Store == nil {
		panic(errors.AssertionFailedf("coordinator without store"))
	}
	if opts.Cache == nil {
		opts.Cache = metacache.New(metacache.Config{})
	}
	if opts.SlowOperationThreshold == 0 {
		opts.SlowOperationThreshold = DefaultSlowOperationThreshold
	}
	return &Coordinator{
		store:         opts.Store,
		cache:         opts.Cache,
		startKey:      opts.StartKey,
		endKey:        opts.EndKey,
		slowThreshold: opts.SlowOperationThreshold,
		slowLog:       log.Every(10 * time.Second),
		metrics:       makeMetrics(),
	}
}

// Metrics returns the coordinator's metrics.
func (c *Coordinator) Metrics() Metrics { return c.metrics }

// Cache returns the metadata cache of the coordinator.
func (c *Coordinator) Cache() *metacache.Cache { return c.cache }

// ClearCache drops every cached definition.
func (c *Coordinator) ClearCache(ctx context.Context) {
	n := c.cache.Len()
	c.cache.InvalidateAll()
	log.Infof(ctx, "cleared %d cached definitions", n)
}

// GetVersion returns the version of the running binary.
func (c *Coordinator) GetVersion() build.Info {
	return build.GetInfo()
}

func (c *Coordinator) now() hlc.Timestamp {
	return c.store.Clock().Now()
}

func (c *Coordinator) result(code catpb.MutationCode) catpb.MutationResult {
	return catpb.MakeResult(code, c.now())
}

func (c *Coordinator) resultWithTable(
	code catpb.MutationCode, def *catpb.TableDefinition,
) catpb.MutationResult {
	res := c.result(code)
	res.Table = def
	return res
}

// inRegion returns whether key lies in [startKey, endKey).
func (c *Coordinator) inRegion(key []byte) bool {
	return bytes.Compare(key, c.startKey) >= 0 &&
		(len(c.endKey) == 0 || bytes.Compare(key, c.endKey) < 0)
}

// stamp returns a copy of muts in which mutations without a timestamp carry
// the operation timestamp, and that timestamp. The operation timestamp is
// the timestamp of the first mutation, or a fresh one from the clock.
func (c *Coordinator) stamp(muts []storage.Mutation) ([]storage.Mutation, hlc.Timestamp) {
	out := make([]storage.Mutation, len(muts))
	copy(out, muts)
	ts := out[0].Timestamp
	if ts.IsEmpty() {
		ts = c.now()
		for i := range out {
			if out[i].Timestamp.IsEmpty() {
				out[i].Timestamp = ts
			}
		}
	}
	return out, ts
}

// run wraps an operation with its log tags, metrics and error annotation.
func (c *Coordinator) run(
	ctx context.Context,
	op string,
	key catalogkeys.Key,
	fn func(ctx context.Context) (catpb.MutationResult, error),
) (catpb.MutationResult, error) {
	ctx = logtags.AddTag(ctx, "op", op)
	ctx = logtags.AddTag(ctx, "entity", key.String())
	start := time.Now()
	res, err := fn(ctx)
	elapsed := time.Since(start)
	c.metrics.observe(op, res.Code, err, elapsed)
	if err != nil {
		if !errors.Is(err, ErrInvalidRequest) {
			log.Errorf(ctx, "%v", err)
		}
		return catpb.MutationResult{}, errors.Wrapf(err, "%s %s", op, key)
	}
	if c.slowThreshold > 0 && elapsed > c.slowThreshold && c.slowLog.ShouldLog() {
		log.Warningf(ctx, "slow operation: %s (%s)", humanizeutil.Duration(elapsed), res.Code)
	}
	log.VEventf(ctx, 1, "%s at %s", res.Code, res.MutationTime)
	return res, nil
}

// operation is the state of one catalog operation: the row locks it holds
// and an assembler resolving indexes through the cache under those locks.
type operation struct {
	c      *Coordinator
	held   map[string]*storage.LockGuard
	guards []*storage.LockGuard
	asm    catalogkv.Assembler
}

func (c *Coordinator) newOperation() *operation {
	o := &operation{c: c, held: make(map[string]*storage.LockGuard)}
	o.asm = catalogkv.Assembler{Store: c.store, Resolver: catalogkv.ResolverFunc(o.getTable)}
	return o
}

func (o *operation) holds(key []byte) bool {
	_, ok := o.held[string(key)]
	return ok
}

// lock acquires the row lock of key for the rest of the operation. Locking
// a key the operation already holds is a no-op.
func (o *operation) lock(ctx context.Context, key []byte) error {
	if o.holds(key) {
		return nil
	}
	g, err := o.c.store.Lock(ctx, key)
	if err != nil {
		return err
	}
	o.held[string(key)] = g
	o.guards = append(o.guards, g)
	return nil
}

// lockScoped acquires the row lock of key unless the operation holds it
// already. The returned function releases a lock taken by the call.
func (o *operation) lockScoped(ctx context.Context, key []byte) (func(), error) {
	if o.holds(key) {
		return func() {}, nil
	}
	g, err := o.c.store.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	k := string(key)
	o.held[k] = g
	return func() {
		delete(o.held, k)
		g.Release()
	}, nil
}

// release releases every lock taken with lock, latest first.
func (o *operation) release() {
	for i := len(o.guards) - 1; i >= 0; i-- {
		delete(o.held, string(o.guards[i].Key()))
		o.guards[i].Release()
	}
	o.guards = nil
}

// cachedAsOf returns the cached definition of key when it is the version
// visible at asOf. A cached tombstone is returned as a nil definition.
func (o *operation) cachedAsOf(
	key catalogkeys.Key, asOf hlc.Timestamp,
) (*catpb.TableDefinition, bool) {
	def, ok := o.c.cache.Get(key)
	if !ok || asOf.Less(def.Timestamp) {
		return nil, false
	}
	if def.IsTombstone() {
		return nil, true
	}
	return def, true
}

// buildLatest builds the latest version of key and caches it.
func (o *operation) buildLatest(
	ctx context.Context, key catalogkeys.Key,
) (*catpb.TableDefinition, error) {
	def, err := o.asm.Build(ctx, key, hlc.MaxTimestamp)
	if err != nil || def == nil {
		return nil, err
	}
	o.c.cache.Put(key, def)
	return def, nil
}

// getTable returns the definition of key visible at asOf, or nil. The
// latest version is served from the cache and rebuilt under the row lock
// of key on a miss; older versions are rebuilt on every call and never
// cached.
func (o *operation) getTable(
	ctx context.Context, key catalogkeys.Key, asOf hlc.Timestamp,
) (*catpb.TableDefinition, error) {
	if def, ok := o.cachedAsOf(key, asOf); ok {
		return def, nil
	}
	fill := func(ctx context.Context) (*catpb.TableDefinition, error) {
		unlock, err := o.lockScoped(ctx, key)
		if err != nil {
			return nil, err
		}
		defer unlock()
		if def, ok := o.cachedAsOf(key, asOf); ok {
			return def, nil
		}
		latest, err := o.buildLatest(ctx, key)
		if err != nil {
			return nil, err
		}
		if asOf == hlc.MaxTimestamp || (latest != nil && latest.Timestamp.LessEq(asOf)) {
			return latest, nil
		}
		return o.asm.Build(ctx, key, asOf)
	}
	// A fill shared with another operation would wait on a lock this
	// operation holds.
	if o.holds(key) {
		return fill(ctx)
	}
	return o.c.cache.Fill(ctx, key, asOf, fill)
}

// loadTable returns the cached definition of key, or builds it as of asOf.
// When nothing is visible, a tombstone is returned if the entity was
// deleted after clientTS. The caller holds the row lock of key.
func (o *operation) loadTable(
	ctx context.Context, key catalogkeys.Key, clientTS, asOf hlc.Timestamp,
) (*catpb.TableDefinition, error) {
	if def, ok := o.c.cache.Get(key); ok {
		return def, nil
	}
	var def *catpb.TableDefinition
	var err error
	if asOf == hlc.MaxTimestamp {
		def, err = o.buildLatest(ctx, key)
	} else {
		def, err = o.asm.Build(ctx, key, asOf)
	}
	if err != nil || def != nil {
		return def, err
	}
	tomb, err := o.asm.BuildDeleted(ctx, key, clientTS)
	if err != nil || tomb == nil {
		return nil, err
	}
	if asOf == hlc.MaxTimestamp {
		o.c.cache.Put(key, tomb)
	}
	return tomb, nil
}

// latestOrDeleted returns the latest definition of key. When the entity
// does not exist, deleted reports whether it was deleted after clientTS.
func (o *operation) latestOrDeleted(
	ctx context.Context, key catalogkeys.Key, clientTS hlc.Timestamp,
) (def *catpb.TableDefinition, deleted bool, _ error) {
	def, ok := o.c.cache.Get(key)
	if !ok {
		var err error
		if def, err = o.buildLatest(ctx, key); err != nil {
			return nil, false, err
		}
	}
	if def != nil {
		return def, false, nil
	}
	tomb, err := o.asm.BuildDeleted(ctx, key, clientTS)
	if err != nil {
		return nil, false, err
	}
	return nil, tomb != nil, nil
}

// hasViews returns whether a view links to table as its physical table.
// Views of a multi-tenant table may belong to any tenant.
func (o *operation) hasViews(ctx context.Context, table *catpb.TableDefinition) (bool, error) {
	opts := storage.ScanOptions{Family: catpb.Family, Qualifier: catpb.LinkTypeQualifier}
	if !table.MultiTenant {
		prefix := append([]byte(table.TenantID), catalogkeys.Separator)
		opts.Start, opts.End = prefix, encoding.PrefixEnd(prefix)
	}
	suffix := append([]byte{catalogkeys.Separator}, table.FullName()...)
	var found bool
	err := o.c.store.Scan(ctx, opts, func(row storage.Row) error {
		if !bytes.HasSuffix(row.Key, suffix) {
			return nil
		}
		lt, ok := row.Get(catpb.Family, catpb.LinkTypeQualifier)
		if ok && len(lt.Value) == 1 && catpb.LinkType(lt.Value[0]) == catpb.LinkTypePhysicalTable {
			found = true
			return iterutil.StopIteration()
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "looking for views of %s", table.Name())
	}
	return found, nil
}

// commit applies muts and invalidates keys once they are durable.
func (o *operation) commit(
	ctx context.Context, muts []storage.Mutation, keys ...catalogkeys.Key,
) (hlc.Timestamp, error) {
	ts, err := o.c.store.Apply(ctx, muts)
	if err != nil {
		return hlc.Timestamp{}, err
	}
	for _, k := range keys {
		if k != nil {
			o.c.cache.Invalidate(k)
		}
	}
	return ts, nil
}
